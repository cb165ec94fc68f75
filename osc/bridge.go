package osc

import (
	"github.com/hypebeast/go-osc/osc"
	"github.com/sirupsen/logrus"
)

// BridgeClient is the plugin-side half of the bridge protocol: a bridged
// subprocess reports its hosted plugin back to the master engine over the
// bridge_* namespace.
type BridgeClient struct {
	base   string
	target *osc.Client
}

// NewBridgeClient points at the master engine's OSC endpoint.
func NewBridgeClient(host string, port int, base string) *BridgeClient {
	return &BridgeClient{
		base:   base,
		target: osc.NewClient(host, port),
	}
}

func (b *BridgeClient) send(path string, args ...any) {
	msg := osc.NewMessage(b.base + path)
	for _, a := range args {
		msg.Append(a)
	}
	if err := b.target.Send(msg); err != nil {
		logrus.WithField("path", path).WithError(err).Debug("bridge send failed")
	}
}

func (b *BridgeClient) SendBridgeAudioCount(ins, outs, total int32) {
	b.send("/bridge_audio_count", ins, outs, total)
}

func (b *BridgeClient) SendBridgeMidiCount(ins, outs, total int32) {
	b.send("/bridge_midi_count", ins, outs, total)
}

func (b *BridgeClient) SendBridgeParameterCount(ins, outs, total int32) {
	b.send("/bridge_parameter_count", ins, outs, total)
}

func (b *BridgeClient) SendBridgeProgramCount(count int32) {
	b.send("/bridge_program_count", count)
}

func (b *BridgeClient) SendBridgeMidiProgramCount(count int32) {
	b.send("/bridge_midi_program_count", count)
}

func (b *BridgeClient) SendBridgePluginInfo(category, hints int32, name, label, maker, copyright string, uniqueID int64) {
	b.send("/bridge_plugin_info", category, hints, name, label, maker, copyright, uniqueID)
}

func (b *BridgeClient) SendBridgeParameterInfo(index int32, name, unit string) {
	b.send("/bridge_parameter_info", index, name, unit)
}

func (b *BridgeClient) SendBridgeParameterData(index, rindex, ptype, hints int32, midiChannel, midiCC int32) {
	b.send("/bridge_parameter_data", index, rindex, ptype, hints, midiChannel, midiCC)
}

func (b *BridgeClient) SendBridgeParameterRanges(index int32, value, min, max, def, step, stepSmall, stepLarge float64) {
	b.send("/bridge_parameter_ranges", index, value, min, max, def, step, stepSmall, stepLarge)
}

func (b *BridgeClient) SendBridgeProgramInfo(index int32, name string) {
	b.send("/bridge_program_info", index, name)
}

func (b *BridgeClient) SendBridgeMidiProgramInfo(index, bank, program int32, name string) {
	b.send("/bridge_midi_program_info", index, bank, program, name)
}

func (b *BridgeClient) SendBridgeConfigure(key, value string) {
	b.send("/bridge_configure", key, value)
}

func (b *BridgeClient) SendBridgeSetParameterValue(index int32, value float64) {
	b.send("/bridge_set_parameter_value", index, value)
}

func (b *BridgeClient) SendBridgeSetDefaultValue(index int32, value float64) {
	b.send("/bridge_set_default_value", index, value)
}

func (b *BridgeClient) SendBridgeSetProgram(index int32) {
	b.send("/bridge_set_program", index)
}

func (b *BridgeClient) SendBridgeSetMidiProgram(index int32) {
	b.send("/bridge_set_midi_program", index)
}

func (b *BridgeClient) SendBridgeSetCustomData(dtype, key, value string) {
	b.send("/bridge_set_custom_data", dtype, key, value)
}

func (b *BridgeClient) SendBridgeSetChunkData(chunkFile string) {
	b.send("/bridge_set_chunk_data", chunkFile)
}
