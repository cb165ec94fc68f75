// Package dummy provides a driver backend with no audio hardware behind
// it: a goroutine paces silent blocks through the engine at the configured
// rate. Importing it registers the "Dummy" driver.
package dummy

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// Backend drives the engine from a timer instead of an audio callback.
type Backend struct {
	engine  *engine.Engine
	running atomic.Bool

	// Captured at Start; the callback must not read mutable options.
	mode plughost.ProcessMode

	stop chan struct{}
	done chan struct{}

	in  [][]float32
	out [][]float32
}

// New returns an unstarted dummy backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Type() plughost.EngineType { return plughost.EngineTypeDummy }
func (b *Backend) Name() string              { return "Dummy" }
func (b *Backend) Running() bool             { return b.running.Load() }

func (b *Backend) Start(e *engine.Engine, clientName string) error {
	opts := e.Options()

	bufferSize := opts.PreferredBufferSize
	if bufferSize == 0 {
		bufferSize = 512
	}
	sampleRate := float64(opts.PreferredSampleRate)
	if sampleRate == 0 {
		sampleRate = 44100
	}

	b.engine = e
	b.mode = opts.ProcessMode
	b.in = [][]float32{make([]float32, bufferSize), make([]float32, bufferSize)}
	b.out = [][]float32{make([]float32, bufferSize), make([]float32, bufferSize)}

	e.SetBufferSize(bufferSize)
	e.SetSampleRate(sampleRate)

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.running.Store(true)

	go b.run(bufferSize, sampleRate)

	logrus.WithFields(logrus.Fields{
		"function":    "Start",
		"driver":      "Dummy",
		"client":      clientName,
		"buffer_size": bufferSize,
		"sample_rate": sampleRate,
	}).Info("dummy driver started")
	return nil
}

func (b *Backend) Stop() error {
	if !b.running.Swap(false) {
		return nil
	}
	close(b.stop)
	<-b.done
	return nil
}

func (b *Backend) run(bufferSize uint32, sampleRate float64) {
	defer close(b.done)

	interval := time.Duration(float64(bufferSize) / sampleRate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frame uint64
	start := time.Now()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.engine.SetTimeInfo(engine.TimeInfo{
				Playing: true,
				Frame:   frame,
				Usecs:   uint64(time.Since(start).Microseconds()),
			})

			for _, buf := range b.in {
				for i := range buf {
					buf[i] = 0
				}
			}

			if b.mode == plughost.ProcessModePatchbay {
				b.engine.ProcessPatchbay(b.in, b.out, bufferSize)
			} else {
				b.engine.ProcessRack(b.in, b.out, bufferSize)
			}
			b.engine.ClearRackEvents()

			frame += uint64(bufferSize)
		}
	}
}

func init() {
	engine.RegisterBackend("Dummy", func() engine.Backend { return New() })
}
