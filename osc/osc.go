// Package osc is the engine's control surface: a UDP server accepting
// controller registration, and the outbound control and bridge message
// namespaces. Message argument types follow standard OSC tags (i, s, d, h).
package osc

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// Host is the engine introspection the server needs to brief a freshly
// registered controller.
type Host interface {
	CurrentPluginCount() uint32
	GetPlugin(id uint32) (plughost.Plugin, error)
}

// Surface runs the OSC endpoint and sends outbound control messages to the
// single registered controller. All sends are no-ops until a controller
// registers.
type Surface struct {
	host Host

	mu     sync.Mutex
	base   string
	conn   net.PacketConn
	server *osc.Server
	target *osc.Client
}

// NewSurface builds an unstarted surface over a host.
func NewSurface(host Host) *Surface {
	return &Surface{host: host}
}

// Init binds the UDP endpoint and starts serving registration messages.
// The server path is derived from the engine client name.
func (s *Surface) Init(name string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("%w: OSC surface already initialized", plughost.ErrAlreadyRunning)
	}

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("%w: %v", plughost.ErrIOFailed, err)
	}

	s.base = "/" + name
	s.conn = conn

	dispatcher := osc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler(s.base+"/register", s.handleRegister); err != nil {
		conn.Close()
		s.conn = nil
		return err
	}
	if err := dispatcher.AddMsgHandler(s.base+"/unregister", s.handleUnregister); err != nil {
		conn.Close()
		s.conn = nil
		return err
	}

	srv := &osc.Server{Addr: conn.LocalAddr().String(), Dispatcher: dispatcher}
	s.server = srv
	go func() {
		if err := srv.Serve(conn); err != nil {
			logrus.WithField("function", "Serve").WithError(err).Debug("OSC server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Init",
		"path":     s.base,
		"addr":     conn.LocalAddr().String(),
	}).Info("OSC surface listening")
	return nil
}

// Close stops the server and forgets the controller.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.server = nil
	s.target = nil
}

// ServerPath returns the base address controllers register against.
func (s *Surface) ServerPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// IsRegistered reports whether a controller is attached.
func (s *Surface) IsRegistered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target != nil
}

func (s *Surface) handleRegister(msg *osc.Message) {
	if len(msg.Arguments) < 1 {
		return
	}
	url, ok := msg.Arguments[0].(string)
	if !ok {
		return
	}
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		logrus.WithField("url", url).Warn("malformed OSC register target")
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.target = osc.NewClient(host, port)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "handleRegister",
		"target":   url,
	}).Info("OSC controller registered")

	// Brief the controller on the current plugin table.
	count := s.host.CurrentPluginCount()
	for i := uint32(0); i < count; i++ {
		plugin, err := s.host.GetPlugin(i)
		if err != nil {
			continue
		}
		s.SendAddPluginStart(i, plugin.Name())
		s.SendAddPluginEnd(i)
	}
}

func (s *Surface) handleUnregister(*osc.Message) {
	s.mu.Lock()
	s.target = nil
	s.mu.Unlock()
	logrus.WithField("function", "handleUnregister").Info("OSC controller unregistered")
}

// send delivers one message to the registered controller, if any.
func (s *Surface) send(path string, args ...any) {
	s.mu.Lock()
	target := s.target
	base := s.base
	s.mu.Unlock()

	if target == nil {
		return
	}

	msg := osc.NewMessage(base + path)
	for _, a := range args {
		msg.Append(a)
	}
	if err := target.Send(msg); err != nil {
		logrus.WithField("path", path).WithError(err).Debug("OSC send failed")
	}
}

// Control namespace. Signatures mirror the wire argument lists.

func (s *Surface) SendAddPluginStart(pluginID uint32, name string) {
	s.send("/add_plugin_start", int32(pluginID), name)
}

func (s *Surface) SendAddPluginEnd(pluginID uint32) {
	s.send("/add_plugin_end", int32(pluginID))
}

func (s *Surface) SendRemovePlugin(pluginID uint32) {
	s.send("/remove_plugin", int32(pluginID))
}

func (s *Surface) SendSetPluginData(pluginID uint32, ptype, category, hints int32, name, label, maker, copyright string, uniqueID int64) {
	s.send("/set_plugin_data", int32(pluginID), ptype, category, hints, name, label, maker, copyright, uniqueID)
}

func (s *Surface) SendSetPluginPorts(pluginID uint32, audioIns, audioOuts, midiIns, midiOuts, paramIns, paramOuts, paramTotal int32) {
	s.send("/set_plugin_ports", int32(pluginID), audioIns, audioOuts, midiIns, midiOuts, paramIns, paramOuts, paramTotal)
}

func (s *Surface) SendSetParameterData(pluginID uint32, index, ptype, hints int32, name, unit string, current float64) {
	s.send("/set_parameter_data", int32(pluginID), index, ptype, hints, name, unit, current)
}

func (s *Surface) SendSetParameterRanges(pluginID uint32, index int32, min, max, def, step, stepSmall, stepLarge float64) {
	s.send("/set_parameter_ranges", int32(pluginID), index, min, max, def, step, stepSmall, stepLarge)
}

func (s *Surface) SendSetParameterMidiCC(pluginID uint32, index, cc int32) {
	s.send("/set_parameter_midi_cc", int32(pluginID), index, cc)
}

func (s *Surface) SendSetParameterMidiChannel(pluginID uint32, index, channel int32) {
	s.send("/set_parameter_midi_channel", int32(pluginID), index, channel)
}

func (s *Surface) SendSetParameterValue(pluginID uint32, index int32, value float64) {
	s.send("/set_parameter_value", int32(pluginID), index, value)
}

func (s *Surface) SendSetDefaultValue(pluginID uint32, index int32, value float64) {
	s.send("/set_default_value", int32(pluginID), index, value)
}

func (s *Surface) SendSetProgram(pluginID uint32, index int32) {
	s.send("/set_program", int32(pluginID), index)
}

func (s *Surface) SendSetProgramCount(pluginID uint32, count int32) {
	s.send("/set_program_count", int32(pluginID), count)
}

func (s *Surface) SendSetProgramName(pluginID uint32, index int32, name string) {
	s.send("/set_program_name", int32(pluginID), index, name)
}

func (s *Surface) SendSetMidiProgram(pluginID uint32, index int32) {
	s.send("/set_midi_program", int32(pluginID), index)
}

func (s *Surface) SendSetMidiProgramCount(pluginID uint32, count int32) {
	s.send("/set_midi_program_count", int32(pluginID), count)
}

func (s *Surface) SendSetMidiProgramData(pluginID uint32, index, bank, program int32, name string) {
	s.send("/set_midi_program_data", int32(pluginID), index, bank, program, name)
}

func (s *Surface) SendNoteOn(pluginID uint32, channel, note, velocity uint8) {
	s.send("/note_on", int32(pluginID), int32(channel), int32(note), int32(velocity))
}

func (s *Surface) SendNoteOff(pluginID uint32, channel, note uint8) {
	s.send("/note_off", int32(pluginID), int32(channel), int32(note))
}

func (s *Surface) SendSetInputPeakValue(pluginID uint32, portID uint16, value float32) {
	s.send("/set_input_peak_value", int32(pluginID), int32(portID), float64(value))
}

func (s *Surface) SendSetOutputPeakValue(pluginID uint32, portID uint16, value float32) {
	s.send("/set_output_peak_value", int32(pluginID), int32(portID), float64(value))
}

func (s *Surface) SendExit() {
	s.send("/exit")
}
