// Package jackdrv adapts the engine to a JACK server through go-jack.
// Importing it registers the "JACK" driver.
package jackdrv

import (
	"fmt"
	"sync/atomic"

	"github.com/hairlesshobo/go-jack"
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// Backend is the JACK adaptation: a 2-in/2-out audio client with one MIDI
// input, forwarding the server's process callback into the engine.
type Backend struct {
	engine  *engine.Engine
	client  *jack.Client
	running atomic.Bool
	mode    plughost.ProcessMode

	audioIn  [2]*jack.Port
	audioOut [2]*jack.Port
	midiIn   *jack.Port

	in  [][]float32
	out [][]float32
}

// New returns an unstarted JACK backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Type() plughost.EngineType { return plughost.EngineTypeJack }
func (b *Backend) Name() string              { return "JACK" }
func (b *Backend) Running() bool             { return b.running.Load() }

func (b *Backend) Start(e *engine.Engine, clientName string) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "Start",
		"driver":   "JACK",
		"client":   clientName,
	})

	client, status := jack.ClientOpen(clientName, jack.NoStartServer)
	if client == nil || status != 0 {
		return fmt.Errorf("could not connect to JACK server (status %d)", status)
	}
	b.client = client
	b.engine = e
	b.mode = e.Options().ProcessMode

	b.audioIn[0] = client.PortRegister("input_1", jack.DEFAULT_AUDIO_TYPE, jack.PortIsInput, 0)
	b.audioIn[1] = client.PortRegister("input_2", jack.DEFAULT_AUDIO_TYPE, jack.PortIsInput, 0)
	b.audioOut[0] = client.PortRegister("output_1", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	b.audioOut[1] = client.PortRegister("output_2", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	b.midiIn = client.PortRegister("events-in", jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)

	bufferSize := client.GetBufferSize()
	b.in = [][]float32{make([]float32, bufferSize), make([]float32, bufferSize)}
	b.out = [][]float32{make([]float32, bufferSize), make([]float32, bufferSize)}

	e.SetBufferSize(bufferSize)
	e.SetSampleRate(float64(client.GetSampleRate()))

	client.SetProcessCallback(b.process)
	client.OnShutdown(func() {
		log.Warn("JACK server shut down")
		b.running.Store(false)
	})

	if code := client.Activate(); code != 0 {
		client.Close()
		b.client = nil
		return fmt.Errorf("could not activate JACK client (code %d)", code)
	}

	b.running.Store(true)
	log.WithFields(logrus.Fields{
		"buffer_size": bufferSize,
		"sample_rate": client.GetSampleRate(),
	}).Info("JACK driver started")
	return nil
}

func (b *Backend) Stop() error {
	if !b.running.Swap(false) {
		return nil
	}
	if b.client != nil {
		if code := b.client.Close(); code != 0 {
			return fmt.Errorf("closing JACK client failed (code %d)", code)
		}
		b.client = nil
	}
	return nil
}

// process is the JACK audio callback: drain MIDI into the shared rack
// buffer, run the block, hand the result back to the server.
func (b *Backend) process(nframes uint32) int {
	if !b.running.Load() {
		return 0
	}

	for _, ev := range b.midiIn.GetMidiEvents(nframes) {
		if len(ev.Buffer) == 0 || len(ev.Buffer) > 3 {
			continue
		}
		status := ev.Buffer[0]
		if status < 0x80 || status >= 0xF0 {
			continue
		}
		b.engine.WriteRackMidiEvent(ev.Time, status&0x0F, 0, ev.Buffer)
	}

	for ch := 0; ch < 2; ch++ {
		samples := b.audioIn[ch].GetBuffer(nframes)
		dst := b.in[ch][:nframes]
		for i := range dst {
			dst[i] = float32(samples[i])
		}
	}

	if b.mode == plughost.ProcessModePatchbay {
		b.engine.ProcessPatchbay(b.in, b.out, nframes)
	} else {
		b.engine.ProcessRack(b.in, b.out, nframes)
	}

	for ch := 0; ch < 2; ch++ {
		samples := b.audioOut[ch].GetBuffer(nframes)
		src := b.out[ch][:nframes]
		for i := range src {
			samples[i] = jack.AudioSample(src[i])
		}
	}

	b.engine.ClearRackEvents()
	return 0
}

func init() {
	engine.RegisterBackend("JACK", func() engine.Backend { return New() })
}
