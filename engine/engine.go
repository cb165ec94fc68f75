package engine

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// ControlSurface receives the engine's outbound control notifications. The
// OSC layer implements it; a nil surface disables reporting.
type ControlSurface interface {
	SendAddPluginStart(pluginID uint32, name string)
	SendAddPluginEnd(pluginID uint32)
	SendRemovePlugin(pluginID uint32)
	SendSetParameterValue(pluginID uint32, param int32, value float64)
	SendSetInputPeakValue(pluginID uint32, portID uint16, value float32)
	SendSetOutputPeakValue(pluginID uint32, portID uint16, value float32)
	SendExit()
}

// PluginInit carries everything a loader needs to build a plugin.
type PluginInit struct {
	Engine   *Engine
	ID       uint32
	Filename string
	Name     string
	Label    string
	Extra    any
}

// LoaderFunc builds a plugin of one format. Loaders report failure through
// the error; the engine propagates its text as the last error verbatim.
type LoaderFunc func(init PluginInit) (plughost.Plugin, error)

var (
	loadersMu sync.RWMutex
	loaders   = map[plughost.PluginType]LoaderFunc{}
)

// RegisterLoader installs the loader for a plugin format. Format packages
// call this from init.
func RegisterLoader(ptype plughost.PluginType, fn LoaderFunc) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[ptype] = fn
}

func loaderFor(ptype plughost.PluginType) LoaderFunc {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	return loaders[ptype]
}

// TimeInfoBBT is the musical-time part of a time snapshot.
type TimeInfoBBT struct {
	Bar            int32
	Beat           int32
	Tick           int32
	BarStartTick   float64
	BeatsPerBar    float32
	BeatType       float32
	TicksPerBeat   float64
	BeatsPerMinute float64
}

// TimeInfoValidBBT marks the BBT block of a TimeInfo as meaningful.
const TimeInfoValidBBT uint32 = 1 << 0

// TimeInfo is a passive transport snapshot, updated by the driver each
// block. Reads from the control thread are advisory.
type TimeInfo struct {
	Playing bool
	Frame   uint64
	Usecs   uint64
	Valid   uint32
	BBT     TimeInfoBBT
}

// Engine is the host core. It owns the plugin table, the shared rack event
// buffers, the post-action slot, and the backend driving its process
// callbacks.
type Engine struct {
	name       string
	instanceID uuid.UUID

	backend Backend
	options plughost.Options
	surface ControlSurface

	bufferSize atomic.Uint32
	sampleRate atomic.Uint64 // float64 bits

	timeInfo atomic.Pointer[TimeInfo]

	curPluginCount  atomic.Uint32
	maxPluginNumber uint32
	slots           []pluginSlot

	nextAction postAction
	thread     *houseThread

	rackEventsIn  []Event
	rackEventsOut []Event

	patchbay *PatchbayGraph

	// ctlMu serializes control-thread operations; the RT path never takes it.
	ctlMu sync.Mutex

	cbMu     sync.Mutex
	callback plughost.CallbackFunc

	errMu     sync.Mutex
	lastError string

	aboutToClose bool
}

// New builds an engine on an explicit backend. Most callers use
// NewDriverByName instead.
func New(backend Backend, options plughost.Options) *Engine {
	e := &Engine{
		backend:    backend,
		options:    options,
		instanceID: uuid.New(),
	}
	e.thread = newHouseThread(e)
	return e
}

// Name returns the client name passed to Init.
func (e *Engine) Name() string { return e.name }

// InstanceID identifies this engine instance in project metadata. The OSC
// control surface does not carry it.
func (e *Engine) InstanceID() uuid.UUID { return e.instanceID }

// Options returns a copy of the active options.
func (e *Engine) Options() plughost.Options { return e.options }

// Type returns the backend's engine type.
func (e *Engine) Type() plughost.EngineType {
	if e.backend == nil {
		return plughost.EngineTypeNull
	}
	return e.backend.Type()
}

// SetControlSurface installs the outbound notification sink. Must be set
// before Init.
func (e *Engine) SetControlSurface(s ControlSurface) { e.surface = s }

// BufferSize returns the driver block size. Nonzero whenever running.
func (e *Engine) BufferSize() uint32 { return e.bufferSize.Load() }

// SampleRate returns the driver sample rate. Nonzero whenever running.
func (e *Engine) SampleRate() float64 {
	return math.Float64frombits(e.sampleRate.Load())
}

// TimeInfo returns the current transport snapshot.
func (e *Engine) TimeInfo() TimeInfo {
	if info := e.timeInfo.Load(); info != nil {
		return *info
	}
	return TimeInfo{}
}

// SetTimeInfo is called by the driver each block.
func (e *Engine) SetTimeInfo(info TimeInfo) { e.timeInfo.Store(&info) }

// MaxClientNameSize bounds derived client names.
func (e *Engine) MaxClientNameSize() int { return plughost.StrMax / 2 }

// MaxPortNameSize bounds port names.
func (e *Engine) MaxPortNameSize() int { return plughost.StrMax }

// IsRunning reports whether the backend is delivering process callbacks.
func (e *Engine) IsRunning() bool {
	return e.backend != nil && e.backend.Running()
}

// Init brings the engine up: sizes the plugin table for the process mode,
// allocates the shared rack event buffers, readies the post-action slot,
// starts housekeeping, and starts the backend.
func (e *Engine) Init(clientName string) error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"function": "Init",
		"client":   clientName,
		"mode":     e.options.ProcessMode.String(),
	})

	if e.slots != nil {
		e.setLastError("Engine is already initialized")
		return plughost.ErrAlreadyRunning
	}
	if clientName == "" {
		e.setLastError("Invalid client name")
		return plughost.ErrInvalidArgument
	}

	e.name = toBasicName(clientName)
	e.timeInfo.Store(&TimeInfo{})
	e.aboutToClose = false
	e.curPluginCount.Store(0)
	e.maxPluginNumber = plughost.MaxPluginsFor(e.options.ProcessMode)
	e.slots = make([]pluginSlot, e.maxPluginNumber)

	e.rackEventsIn = make([]Event, plughost.RackEventCount)
	e.rackEventsOut = make([]Event, plughost.RackEventCount)

	if e.options.ProcessMode == plughost.ProcessModePatchbay {
		e.patchbay = NewPatchbayGraph()
	}

	e.nextAction.ready()
	e.thread.startNow()

	if err := e.backend.Start(e, e.name); err != nil {
		e.thread.stopNow()
		e.slots = nil
		e.setLastError(err.Error())
		log.WithError(err).Error("backend start failed")
		return fmt.Errorf("starting %s backend: %w", e.backend.Name(), err)
	}

	log.WithFields(logrus.Fields{
		"buffer_size": e.BufferSize(),
		"sample_rate": e.SampleRate(),
	}).Info("engine initialized")
	return nil
}

// Close tears the engine down: drains pending post-actions, stops
// housekeeping and the backend, notifies the control surface, and deletes
// every plugin. Drivers stop their callback before Close returns.
func (e *Engine) Close() error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	if e.slots == nil {
		e.setLastError("Engine is not initialized")
		return plughost.ErrNotRunning
	}

	e.aboutToClose = true
	e.thread.stopNow()
	e.waitForProcessEnd()

	if e.surface != nil {
		e.surface.SendExit()
	}

	if err := e.backend.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"backend":  e.backend.Name(),
		}).WithError(err).Error("backend stop failed")
	}

	e.removeAllPluginsLocked()

	e.slots = nil
	e.rackEventsIn = nil
	e.rackEventsOut = nil
	e.patchbay = nil
	e.maxPluginNumber = 0
	e.name = ""

	logrus.WithField("function", "Close").Info("engine closed")
	return nil
}

// Idle forwards GUI idling to every enabled plugin. Driven by the
// housekeeping thread; safe to call manually from the control thread.
func (e *Engine) Idle() {
	count := e.curPluginCount.Load()
	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin != nil && plugin.Enabled() {
			plugin.IdleGUI()
		}
	}
}

// reportPeaks pushes the per-plugin peak snapshots to the control surface.
// Peak port ids are 1-based on the wire.
func (e *Engine) reportPeaks() {
	if e.surface == nil {
		return
	}
	count := e.curPluginCount.Load()
	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin == nil || !plugin.Enabled() {
			continue
		}
		if plugin.AudioInCount() > 0 {
			e.surface.SendSetInputPeakValue(i, 1, e.InputPeak(i, 0))
			e.surface.SendSetInputPeakValue(i, 2, e.InputPeak(i, 1))
		}
		if plugin.AudioOutCount() > 0 {
			e.surface.SendSetOutputPeakValue(i, 1, e.OutputPeak(i, 0))
			e.surface.SendSetOutputPeakValue(i, 2, e.OutputPeak(i, 1))
		}
	}
}

// AddClient builds the engine client a plugin attaches its ports to.
func (e *Engine) AddClient(plughost.Plugin) *Client {
	return newClient(e.Type(), e.options.ProcessMode)
}

// AddPlugin loads a plugin and installs it at the next free slot. The new
// plugin's id is the previous plugin count.
func (e *Engine) AddPlugin(btype plughost.BinaryType, ptype plughost.PluginType, filename, name, label string, extra any) error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"function": "AddPlugin",
		"binary":   btype.String(),
		"type":     ptype.String(),
		"filename": filename,
		"label":    label,
	})

	if e.slots == nil {
		e.setLastError("Engine is not initialized")
		return plughost.ErrNotRunning
	}
	if e.curPluginCount.Load() == e.maxPluginNumber {
		e.setLastError("Maximum number of plugins reached")
		log.Error("plugin table full")
		return plughost.ErrAtCapacity
	}

	id := e.curPluginCount.Load()

	if e.options.PreferPluginBridges && e.options.Bridges.ForBinary(btype) != "" {
		if e.options.ProcessMode != plughost.ProcessModeMultipleClients {
			e.setLastError("Can only use bridged plugins in JACK Multi-Client mode")
			return plughost.ErrUnsupportedBridgeMode
		}
		if e.Type() != plughost.EngineTypeJack {
			e.setLastError("Can only use bridged plugins with JACK backend")
			return plughost.ErrUnsupportedBridgeMode
		}
		e.setLastError("Bridged plugins are not implemented yet")
		return plughost.ErrUnsupportedBridgeMode
	}

	loader := loaderFor(ptype)
	if loader == nil {
		e.setLastError(fmt.Sprintf("No loader registered for %s plugins", ptype))
		log.Error("no loader registered")
		return plughost.ErrLoaderFailed
	}

	if name == "" {
		name = label
	}
	name = e.GetNewUniquePluginName(name)

	plugin, err := loader(PluginInit{
		Engine:   e,
		ID:       id,
		Filename: filename,
		Name:     name,
		Label:    label,
		Extra:    extra,
	})
	if err != nil || plugin == nil {
		if err != nil {
			e.setLastError(err.Error())
		}
		log.WithError(err).Error("loader failed")
		return fmt.Errorf("%w: %s", plughost.ErrLoaderFailed, e.LastError())
	}

	e.slots[id].plugin = plugin
	if co, ok := plugin.(clientOwner); ok {
		e.slots[id].client = co.Client()
	}
	e.slots[id].cachePortBuffers()
	e.slots[id].zeroPeaks()

	// The count store publishes the slot to the RT thread.
	e.curPluginCount.Store(id + 1)

	if e.surface != nil {
		e.surface.SendAddPluginStart(id, plugin.Name())
		e.surface.SendAddPluginEnd(id)
	}
	e.fireCallback(plughost.CallbackPluginAdded, id, 0, 0, 0, plugin.Name())

	log.WithField("plugin_id", id).Info("plugin added")
	return nil
}

// RemovePlugin removes the plugin at id and compacts the table. While the
// engine is running the removal is staged through the post-action slot and
// executed by the RT thread at the next block boundary; the call blocks
// until then.
func (e *Engine) RemovePlugin(id uint32) error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"function":  "RemovePlugin",
		"plugin_id": id,
	})

	if e.slots == nil {
		e.setLastError("Critical error: no plugins are currently loaded!")
		return plughost.ErrNotRunning
	}
	if id >= e.curPluginCount.Load() || e.slots[id].plugin == nil {
		e.setLastError("Could not find plugin to remove")
		log.Error("plugin not found")
		return plughost.ErrPluginNotFound
	}

	plugin := e.slots[id].plugin

	e.thread.stopNow()

	// Lock before publishing: the RT drain must never find the slot
	// armed while the mutex is free.
	e.nextAction.mutex.Lock()
	e.nextAction.pluginID.Store(id)
	e.nextAction.opcode.Store(postActionRemovePlugin)

	if e.IsRunning() {
		// Second acquisition blocks until the RT drain executes the
		// removal and unlocks.
		e.nextAction.mutex.Lock()
	} else {
		e.doPluginRemove(false)
	}

	if e.surface != nil {
		e.surface.SendRemovePlugin(id)
	}

	plugin.SetEnabled(false)

	e.nextAction.mutex.Unlock()

	if e.IsRunning() && !e.aboutToClose {
		e.thread.startNow()
	}

	e.fireCallback(plughost.CallbackPluginRemoved, id, 0, 0, 0, "")

	log.Info("plugin removed")
	return nil
}

// RemoveAllPlugins empties the table under an Idle barrier.
func (e *Engine) RemoveAllPlugins() {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	e.removeAllPluginsLocked()
}

func (e *Engine) removeAllPluginsLocked() {
	if e.slots == nil {
		return
	}

	e.thread.stopNow()

	oldCount := e.curPluginCount.Load()
	e.curPluginCount.Store(0)

	e.waitForProcessEnd()

	for i := uint32(0); i < oldCount; i++ {
		if plugin := e.slots[i].plugin; plugin != nil {
			plugin.SetEnabled(false)
		}
		e.slots[i].clear()
		e.slots[i].zeroPeaks()
	}

	if e.IsRunning() && !e.aboutToClose {
		e.thread.startNow()
	}
}

// SetCallback installs the notification callback.
func (e *Engine) SetCallback(fn plughost.CallbackFunc) {
	e.cbMu.Lock()
	e.callback = fn
	e.cbMu.Unlock()
}

func (e *Engine) fireCallback(action plughost.CallbackType, pluginID uint32, v1, v2 int32, v3 float32, str string) {
	e.cbMu.Lock()
	fn := e.callback
	e.cbMu.Unlock()
	if fn != nil {
		fn(action, pluginID, v1, v2, v3, str)
	}
}

// Callback lets plugins and loaders raise engine notifications.
func (e *Engine) Callback(action plughost.CallbackType, pluginID uint32, v1, v2 int32, v3 float32, str string) {
	e.fireCallback(action, pluginID, v1, v2, v3, str)
	if e.surface != nil && action == plughost.CallbackParameterValueChanged {
		e.surface.SendSetParameterValue(pluginID, v1, float64(v3))
	}
}

// LastError returns the text of the most recent control-thread failure.
func (e *Engine) LastError() string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastError
}

func (e *Engine) setLastError(msg string) {
	e.errMu.Lock()
	e.lastError = msg
	e.errMu.Unlock()
}

// SetAboutToClose marks the engine as shutting down, keeping housekeeping
// from restarting.
func (e *Engine) SetAboutToClose() { e.aboutToClose = true }

// RackEventBuffer returns the engine-owned shared rack event buffer for one
// direction. Rack event ports acquire it at InitBuffer time.
func (e *Engine) RackEventBuffer(isInput bool) []Event {
	if isInput {
		return e.rackEventsIn
	}
	return e.rackEventsOut
}

// ClearRackEvents resets both shared rack event buffers. Drivers call it at
// the end of each block; output events still in the buffer are discarded.
func (e *Engine) ClearRackEvents() {
	zeroEvents(e.rackEventsIn)
	zeroEvents(e.rackEventsOut)
}

// WriteRackMidiEvent appends an inbound short MIDI message to the shared
// rack input buffer. Drivers call it while draining their MIDI source
// before processing a block. Invalid input is dropped.
func (e *Engine) WriteRackMidiEvent(time uint32, channel, port uint8, data []byte) {
	if e.rackEventsIn == nil || channel >= plughost.MaxMIDIChannels {
		return
	}
	if len(data) == 0 || len(data) > 3 {
		return
	}
	writeMidi(e.rackEventsIn, time, channel, port, data)
}

// Patchbay returns the connection manager, or nil outside patchbay mode.
func (e *Engine) Patchbay() *PatchbayGraph { return e.patchbay }

// SetBufferSize records a new driver block size and fans the change out to
// enabled plugins. Called by backends, before processing resumes.
func (e *Engine) SetBufferSize(newSize uint32) {
	e.bufferSize.Store(newSize)
	e.BufferSizeChanged(newSize)
}

// SetSampleRate records a new driver sample rate and fans the change out.
func (e *Engine) SetSampleRate(newRate float64) {
	e.sampleRate.Store(math.Float64bits(newRate))
	e.SampleRateChanged(newRate)
}

// BufferSizeChanged notifies enabled plugins of a block-size change.
func (e *Engine) BufferSizeChanged(newSize uint32) {
	count := e.curPluginCount.Load()
	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin != nil && plugin.Enabled() {
			plugin.BufferSizeChanged(newSize)
		}
	}
}

// SampleRateChanged notifies enabled plugins of a sample-rate change.
func (e *Engine) SampleRateChanged(newRate float64) {
	count := e.curPluginCount.Load()
	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin != nil && plugin.Enabled() {
			plugin.SampleRateChanged(newRate)
		}
	}
}

// toBasicName strips characters some drivers reserve in client names.
func toBasicName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= '0' && r <= '9',
			r >= 'A' && r <= 'Z',
			r >= 'a' && r <= 'z',
			r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}
