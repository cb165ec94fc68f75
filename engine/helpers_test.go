package engine

import (
	"sync/atomic"

	"github.com/audiohost/plughost"
)

// stubBackend satisfies Backend without any hardware behind it. Tests that
// exercise the running-engine paths flip the running flag and drive
// ProcessRack themselves, playing the RT thread.
type stubBackend struct {
	running    atomic.Bool
	runOnStart bool
}

func newStubBackend(runOnStart bool) *stubBackend {
	return &stubBackend{runOnStart: runOnStart}
}

func (b *stubBackend) Start(e *Engine, _ string) error {
	e.SetBufferSize(512)
	e.SetSampleRate(48000)
	b.running.Store(b.runOnStart)
	return nil
}

func (b *stubBackend) Stop() error {
	b.running.Store(false)
	return nil
}

func (b *stubBackend) Running() bool             { return b.running.Load() }
func (b *stubBackend) Type() plughost.EngineType { return plughost.EngineTypeDummy }
func (b *stubBackend) Name() string              { return "stub" }

// mockPlugin is a minimal plugin for table and processor tests. Fields the
// RT thread touches are atomic so the race detector stays quiet.
type mockPlugin struct {
	id      atomic.Uint32
	enabled atomic.Bool

	name     string
	audioIn  uint32
	audioOut uint32
	midiIn   uint32
	midiOut  uint32

	processCount   atomic.Uint32
	processFn      func(in, out [][]float32, frames uint32)
	lastBufferSize atomic.Uint32
	lastSampleRate atomic.Uint64
}

func newMockPlugin(id uint32, name string) *mockPlugin {
	p := &mockPlugin{name: name, audioIn: 2, audioOut: 2}
	p.id.Store(id)
	p.enabled.Store(true)
	return p
}

func (p *mockPlugin) ID() uint32                 { return p.id.Load() }
func (p *mockPlugin) SetID(id uint32)            { p.id.Store(id) }
func (p *mockPlugin) Name() string               { return p.name }
func (p *mockPlugin) Type() plughost.PluginType  { return plughost.PluginInternal }
func (p *mockPlugin) Enabled() bool              { return p.enabled.Load() }
func (p *mockPlugin) SetEnabled(enabled bool)    { p.enabled.Store(enabled) }
func (p *mockPlugin) AudioInCount() uint32       { return p.audioIn }
func (p *mockPlugin) AudioOutCount() uint32      { return p.audioOut }
func (p *mockPlugin) MidiInCount() uint32        { return p.midiIn }
func (p *mockPlugin) MidiOutCount() uint32       { return p.midiOut }
func (p *mockPlugin) ParameterCount() uint32     { return 0 }
func (p *mockPlugin) ParameterValue(uint32) float32 { return 0 }
func (p *mockPlugin) SetParameterValue(uint32, float32) {}
func (p *mockPlugin) BufferSizeChanged(newSize uint32) { p.lastBufferSize.Store(newSize) }
func (p *mockPlugin) SampleRateChanged(newRate float64) {
	p.lastSampleRate.Store(uint64(newRate))
}
func (p *mockPlugin) IdleGUI()                   {}

func (p *mockPlugin) Process(in, out [][]float32, frames uint32) {
	p.processCount.Add(1)
	if p.processFn != nil {
		p.processFn(in, out, frames)
	}
}

func (p *mockPlugin) SaveState() plughost.SaveState {
	return plughost.SaveState{
		Type:   p.Type().String(),
		Name:   p.name,
		Active: p.Enabled(),
	}
}

// registerMockLoader installs a loader that returns mockPlugins, or an
// error for the label "fail".
func registerMockLoader() {
	RegisterLoader(plughost.PluginInternal, func(init PluginInit) (plughost.Plugin, error) {
		if init.Label == "fail" {
			return nil, errLoaderRefused
		}
		return newMockPlugin(init.ID, init.Name), nil
	})
}

var errLoaderRefused = errRefused{}

type errRefused struct{}

func (errRefused) Error() string { return "mock loader refused to load this plugin" }

// newRackEngine builds and initializes a rack-mode engine on a stub
// backend.
func newRackEngine(runOnStart bool) (*Engine, *stubBackend, error) {
	registerMockLoader()
	backend := newStubBackend(runOnStart)
	opts := plughost.DefaultOptions()
	opts.ProcessMode = plughost.ProcessModeContinuousRack
	e := New(backend, opts)
	err := e.Init("test")
	return e, backend, err
}

func stereoBlock(frames uint32, left, right float32) [][]float32 {
	buf := [][]float32{make([]float32, frames), make([]float32, frames)}
	for i := range buf[0] {
		buf[0][i] = left
		buf[1][i] = right
	}
	return buf
}
