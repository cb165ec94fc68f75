// Package padrv adapts the engine to PortAudio host APIs, covering the
// RtAudio driver family of the original host. MIDI input arrives through
// PortMidi. Importing it registers the family's driver names.
package padrv

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rakyll/portmidi"
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// apiNames are the driver names served by this backend, mirroring the
// RtAudio selection table of the original host.
var apiNames = []string{
	"ALSA",
	"PulseAudio",
	"OSS",
	"CoreAudio",
	"ASIO",
	"DirectSound",
	"JACK (RtAudio)",
}

// Backend opens a duplex stereo PortAudio stream and bridges PortMidi
// input into the shared rack event buffer.
type Backend struct {
	apiName string

	engine  *engine.Engine
	stream  *portaudio.Stream
	midi    *portmidi.Stream
	running atomic.Bool
	mode    plughost.ProcessMode

	frame uint64
}

// New returns an unstarted backend for one host-API name.
func New(apiName string) *Backend { return &Backend{apiName: apiName} }

func (b *Backend) Type() plughost.EngineType { return plughost.EngineTypeRtAudio }
func (b *Backend) Name() string              { return b.apiName }
func (b *Backend) Running() bool             { return b.running.Load() }

func (b *Backend) Start(e *engine.Engine, clientName string) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "Start",
		"driver":   b.apiName,
		"client":   clientName,
	})

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	opts := e.Options()
	bufferSize := opts.PreferredBufferSize
	if bufferSize == 0 {
		bufferSize = 512
	}
	sampleRate := float64(opts.PreferredSampleRate)
	if sampleRate == 0 {
		sampleRate = 44100
	}

	stream, err := portaudio.OpenDefaultStream(2, 2, sampleRate, int(bufferSize), b.process)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening audio stream: %w", err)
	}

	b.engine = e
	b.stream = stream
	b.mode = opts.ProcessMode

	if err := portmidi.Initialize(); err != nil {
		log.WithError(err).Warn("portmidi unavailable, continuing without MIDI input")
	} else if id := portmidi.DefaultInputDeviceID(); id >= 0 {
		midi, err := portmidi.NewInputStream(id, 64)
		if err != nil {
			log.WithError(err).Warn("could not open MIDI input")
		} else {
			b.midi = midi
		}
	}

	e.SetBufferSize(bufferSize)
	e.SetSampleRate(sampleRate)

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		b.stream = nil
		return fmt.Errorf("starting audio stream: %w", err)
	}

	b.running.Store(true)
	log.WithFields(logrus.Fields{
		"buffer_size": bufferSize,
		"sample_rate": sampleRate,
	}).Info("portaudio driver started")
	return nil
}

func (b *Backend) Stop() error {
	if !b.running.Swap(false) {
		return nil
	}
	var firstErr error
	if b.stream != nil {
		if err := b.stream.Stop(); err != nil {
			firstErr = err
		}
		if err := b.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.stream = nil
	}
	if b.midi != nil {
		b.midi.Close()
		b.midi = nil
		portmidi.Terminate()
	}
	portaudio.Terminate()
	return firstErr
}

// process is the PortAudio stream callback.
func (b *Backend) process(in, out [][]float32) {
	if !b.running.Load() {
		return
	}

	frames := uint32(len(out[0]))

	b.drainMidi()

	b.engine.SetTimeInfo(engine.TimeInfo{
		Playing: true,
		Frame:   b.frame,
	})

	if b.mode == plughost.ProcessModePatchbay {
		b.engine.ProcessPatchbay(in, out, frames)
	} else {
		b.engine.ProcessRack(in, out, frames)
	}
	b.engine.ClearRackEvents()

	b.frame += uint64(frames)
}

// drainMidi moves pending PortMidi events into the rack input buffer.
// Short channel messages only; anything else is dropped.
func (b *Backend) drainMidi() {
	if b.midi == nil {
		return
	}
	events, err := b.midi.Read(64)
	if err != nil {
		return
	}
	for _, ev := range events {
		status := byte(ev.Status)
		if status < 0x80 || status >= 0xF0 {
			continue
		}
		data := []byte{status, byte(ev.Data1), byte(ev.Data2)}
		// Program change and channel pressure carry one data byte.
		if kind := status & 0xF0; kind == 0xC0 || kind == 0xD0 {
			data = data[:2]
		}
		b.engine.WriteRackMidiEvent(0, status&0x0F, 0, data)
	}
}

func init() {
	for _, name := range apiNames {
		name := name
		engine.RegisterBackend(name, func() engine.Backend { return New(name) })
	}
}
