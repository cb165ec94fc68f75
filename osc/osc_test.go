package osc

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiohost/plughost"
)

type fakeHost struct {
	names []string
}

func (h *fakeHost) CurrentPluginCount() uint32 { return uint32(len(h.names)) }

func (h *fakeHost) GetPlugin(id uint32) (plughost.Plugin, error) {
	if id >= uint32(len(h.names)) {
		return nil, plughost.ErrPluginNotFound
	}
	return &fakePlugin{name: h.names[id]}, nil
}

type fakePlugin struct {
	name string
}

func (p *fakePlugin) ID() uint32                           { return 0 }
func (p *fakePlugin) SetID(uint32)                         {}
func (p *fakePlugin) Name() string                         { return p.name }
func (p *fakePlugin) Type() plughost.PluginType            { return plughost.PluginInternal }
func (p *fakePlugin) Enabled() bool                        { return true }
func (p *fakePlugin) SetEnabled(bool)                      {}
func (p *fakePlugin) AudioInCount() uint32                 { return 2 }
func (p *fakePlugin) AudioOutCount() uint32                { return 2 }
func (p *fakePlugin) MidiInCount() uint32                  { return 0 }
func (p *fakePlugin) MidiOutCount() uint32                 { return 0 }
func (p *fakePlugin) ParameterCount() uint32               { return 0 }
func (p *fakePlugin) ParameterValue(uint32) float32        { return 0 }
func (p *fakePlugin) SetParameterValue(uint32, float32)    {}
func (p *fakePlugin) BufferSizeChanged(uint32)             {}
func (p *fakePlugin) SampleRateChanged(float64)            {}
func (p *fakePlugin) Process(_, _ [][]float32, _ uint32)   {}
func (p *fakePlugin) IdleGUI()                             {}
func (p *fakePlugin) SaveState() plughost.SaveState        { return plughost.SaveState{Name: p.name} }

// startSurface binds a surface on an ephemeral port and returns its UDP
// port number.
func startSurface(t *testing.T, host Host) (*Surface, int) {
	t.Helper()
	s := NewSurface(host)
	require.NoError(t, s.Init("test", 0))
	t.Cleanup(s.Close)

	addr := s.conn.LocalAddr().(*net.UDPAddr)
	return s, addr.Port
}

// newController opens the controller side: a UDP socket the surface will
// send to once registered.
func newController(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().String()
}

func register(t *testing.T, s *Surface, serverPort int, controllerAddr string) {
	t.Helper()
	client := goosc.NewClient("127.0.0.1", serverPort)
	msg := goosc.NewMessage("/test/register")
	msg.Append(controllerAddr)
	require.NoError(t, client.Send(msg))

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRegistered() {
		if time.Now().After(deadline) {
			t.Fatal("controller registration never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readPacket(t *testing.T, conn *net.UDPConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestSurfaceInitAndPath(t *testing.T) {
	s, _ := startSurface(t, &fakeHost{})
	assert.Equal(t, "/test", s.ServerPath())
	assert.False(t, s.IsRegistered())
}

func TestSurfaceDoubleInitFails(t *testing.T) {
	s, _ := startSurface(t, &fakeHost{})
	require.ErrorIs(t, s.Init("test", 0), plughost.ErrAlreadyRunning)
}

func TestSendsAreNoOpsUntilRegistered(t *testing.T) {
	s, _ := startSurface(t, &fakeHost{})
	// Must not panic or block with no controller attached.
	s.SendAddPluginStart(0, "a")
	s.SendExit()
}

func TestRegisterThenReceiveControlMessages(t *testing.T) {
	s, port := startSurface(t, &fakeHost{})
	conn, controllerAddr := newController(t)

	register(t, s, port, controllerAddr)

	s.SendAddPluginStart(3, "synth")
	packet := readPacket(t, conn)
	assert.Contains(t, packet, "/test/add_plugin_start")
	assert.Contains(t, packet, "synth")

	s.SendSetInputPeakValue(3, 1, 0.5)
	assert.Contains(t, readPacket(t, conn), "/test/set_input_peak_value")

	s.SendExit()
	assert.Contains(t, readPacket(t, conn), "/test/exit")
}

func TestRegisterBriefsExistingPlugins(t *testing.T) {
	s, port := startSurface(t, &fakeHost{names: []string{"alpha", "beta"}})
	conn, controllerAddr := newController(t)

	register(t, s, port, controllerAddr)

	var packets []string
	for i := 0; i < 4; i++ { // add_plugin_start + add_plugin_end per plugin
		packets = append(packets, readPacket(t, conn))
	}
	joined := strings.Join(packets, "\n")
	assert.Contains(t, joined, "alpha")
	assert.Contains(t, joined, "beta")
	assert.Contains(t, joined, "/test/add_plugin_end")
}

func TestUnregisterDetachesController(t *testing.T) {
	s, port := startSurface(t, &fakeHost{})
	_, controllerAddr := newController(t)

	register(t, s, port, controllerAddr)

	client := goosc.NewClient("127.0.0.1", port)
	require.NoError(t, client.Send(goosc.NewMessage("/test/unregister")))

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRegistered() {
		if time.Now().After(deadline) {
			t.Fatal("unregister never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridgeClientSendsNamespace(t *testing.T) {
	conn, addr := newController(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)

	b := NewBridgeClient(host, port, "/test")
	b.SendBridgeAudioCount(2, 2, 4)
	assert.Contains(t, readPacket(t, conn), "/test/bridge_audio_count")

	b.SendBridgePluginInfo(0, 0, "name", "label", "maker", "(c)", 42)
	assert.Contains(t, readPacket(t, conn), "/test/bridge_plugin_info")
}
