// Package plugin provides the host's built-in plugin format and the base
// type format loaders build on. Importing it registers the internal loader
// with the engine.
package plugin

import (
	"math"
	"sync/atomic"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// Parameter describes one automatable plugin parameter. Values are stored
// as float bits: the control thread writes them while the RT thread reads.
type Parameter struct {
	Name    string
	Min     float32
	Max     float32
	Default float32

	value atomic.Uint32
}

func (p *Parameter) get() float32 { return math.Float32frombits(p.value.Load()) }

func (p *Parameter) set(v float32) {
	if v < p.Min {
		v = p.Min
	}
	if v > p.Max {
		v = p.Max
	}
	p.value.Store(math.Float32bits(v))
}

// Base carries the state every plugin format shares and satisfies all of
// the plugin contract except Process. Formats embed it and add their DSP.
type Base struct {
	id      atomic.Uint32
	enabled atomic.Bool

	ptype    plughost.PluginType
	name     string
	label    string
	filename string

	audioIn  uint32
	audioOut uint32
	midiIn   uint32
	midiOut  uint32

	params []*Parameter

	engine *engine.Engine
	client *engine.Client

	bufferSize uint32
	sampleRate float64
}

// newBase wires a plugin skeleton to its engine client and registers the
// standard port set for its channel shape.
func newBase(init engine.PluginInit, ptype plughost.PluginType, audioIn, audioOut, midiIn, midiOut uint32) *Base {
	b := &Base{
		ptype:      ptype,
		name:       init.Name,
		label:      init.Label,
		filename:   init.Filename,
		audioIn:    audioIn,
		audioOut:   audioOut,
		midiIn:     midiIn,
		midiOut:    midiOut,
		engine:     init.Engine,
		bufferSize: init.Engine.BufferSize(),
		sampleRate: init.Engine.SampleRate(),
	}
	b.id.Store(init.ID)

	b.client = init.Engine.AddClient(nil)
	for i := uint32(0); i < audioIn; i++ {
		b.client.AddPort(plughost.PortTypeAudio, "input", true)
	}
	for i := uint32(0); i < audioOut; i++ {
		b.client.AddPort(plughost.PortTypeAudio, "output", false)
	}
	if midiIn > 0 {
		b.client.AddPort(plughost.PortTypeEvent, "events-in", true)
	}
	if midiOut > 0 {
		b.client.AddPort(plughost.PortTypeEvent, "events-out", false)
	}
	b.client.Activate()
	b.enabled.Store(true)

	return b
}

func (b *Base) ID() uint32      { return b.id.Load() }
func (b *Base) SetID(id uint32) { b.id.Store(id) }

func (b *Base) Name() string              { return b.name }
func (b *Base) Type() plughost.PluginType { return b.ptype }

func (b *Base) Enabled() bool           { return b.enabled.Load() }
func (b *Base) SetEnabled(enabled bool) { b.enabled.Store(enabled) }

func (b *Base) AudioInCount() uint32  { return b.audioIn }
func (b *Base) AudioOutCount() uint32 { return b.audioOut }
func (b *Base) MidiInCount() uint32   { return b.midiIn }
func (b *Base) MidiOutCount() uint32  { return b.midiOut }

// Client exposes the engine client so the engine can drive per-block port
// initialization.
func (b *Base) Client() *engine.Client { return b.client }

func (b *Base) ParameterCount() uint32 { return uint32(len(b.params)) }

func (b *Base) ParameterValue(index uint32) float32 {
	if index >= uint32(len(b.params)) {
		return 0
	}
	return b.params[index].get()
}

func (b *Base) SetParameterValue(index uint32, value float32) {
	if index >= uint32(len(b.params)) {
		return
	}
	b.params[index].set(value)
	b.engine.Callback(plughost.CallbackParameterValueChanged, b.id.Load(), int32(index), 0, value, "")
}

func (b *Base) BufferSizeChanged(newSize uint32)   { b.bufferSize = newSize }
func (b *Base) SampleRateChanged(newRate float64)  { b.sampleRate = newRate }

func (b *Base) IdleGUI() {}

func (b *Base) SaveState() plughost.SaveState {
	state := plughost.SaveState{
		Type:     b.ptype.String(),
		Name:     b.name,
		Label:    b.label,
		Binary:   plughost.BinaryNative.String(),
		Filename: b.filename,
		Active:   b.enabled.Load(),
	}
	for i, p := range b.params {
		state.Parameters = append(state.Parameters, plughost.ParameterState{
			Index: uint32(i),
			Name:  p.Name,
			Value: p.get(),
		})
	}
	return state
}

// eventIn returns the plugin's event input port, if it has one.
func (b *Base) eventIn() *engine.EventPort { return b.eventPort(true) }

// eventOut returns the plugin's event output port, if it has one.
func (b *Base) eventOut() *engine.EventPort { return b.eventPort(false) }

func (b *Base) eventPort(isInput bool) *engine.EventPort {
	for _, p := range b.client.Ports() {
		ep, ok := p.(*engine.EventPort)
		if ok && ep.IsInput() == isInput {
			return ep
		}
	}
	return nil
}
