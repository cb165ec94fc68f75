package plugin

import (
	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// NullPlugin passes stereo audio through untouched. Useful as a chain
// placeholder and in tests.
type NullPlugin struct {
	*Base
}

func newNullPlugin(init engine.PluginInit) (plughost.Plugin, error) {
	return &NullPlugin{Base: newBase(init, plughost.PluginInternal, 2, 2, 0, 0)}, nil
}

func (p *NullPlugin) Process(in, out [][]float32, frames uint32) {
	n := len(out)
	if len(in) < n {
		n = len(in)
	}
	for ch := 0; ch < n; ch++ {
		copy(out[ch][:frames], in[ch][:frames])
	}
}

// GainPlugin scales stereo audio by its single Gain parameter.
type GainPlugin struct {
	*Base
}

func newGainPlugin(init engine.PluginInit) (plughost.Plugin, error) {
	p := &GainPlugin{Base: newBase(init, plughost.PluginInternal, 2, 2, 0, 0)}
	gain := &Parameter{Name: "Gain", Min: 0, Max: 1, Default: 1}
	gain.set(gain.Default)
	p.params = append(p.params, gain)
	return p, nil
}

func (p *GainPlugin) Process(in, out [][]float32, frames uint32) {
	gain := p.params[0].get()
	n := len(out)
	if len(in) < n {
		n = len(in)
	}
	for ch := 0; ch < n; ch++ {
		src := in[ch][:frames]
		dst := out[ch][:frames]
		for i := range dst {
			dst[i] = src[i] * gain
		}
	}
}

// MidiThruPlugin forwards its event input to its event output without
// touching audio. Having a MIDI output, it opts out of the rack's implicit
// event pass-through and does the forwarding itself.
type MidiThruPlugin struct {
	*Base
}

func newMidiThruPlugin(init engine.PluginInit) (plughost.Plugin, error) {
	return &MidiThruPlugin{Base: newBase(init, plughost.PluginInternal, 0, 0, 1, 1)}, nil
}

func (p *MidiThruPlugin) Process(_, _ [][]float32, _ uint32) {
	in := p.eventIn()
	out := p.eventOut()
	if in == nil || out == nil {
		return
	}

	count := in.EventCount()
	for i := uint32(0); i < count; i++ {
		ev := in.GetEvent(i)
		switch ev.Type {
		case engine.EventTypeControl:
			out.WriteControlEvent(ev.Time, ev.Channel, ev.Ctrl.Type, ev.Ctrl.Param, ev.Ctrl.Value)
		case engine.EventTypeMidi:
			out.WriteMidiEvent(ev.Time, ev.Channel, ev.Midi.Port, ev.Midi.Data[:ev.Midi.Size])
		}
	}
}
