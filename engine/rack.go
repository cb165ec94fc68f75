package engine

// The rack is a degenerate series graph: fixed 2-in/2-out audio shape, a
// shared event bus, bounded work per block, and no per-block allocation.

// absPeak returns the peak magnitude of a buffer.
func absPeak(buf []float32) float32 {
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

func zeroFloats(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// ProcessRack renders one block of the continuous-rack topology. Called by
// the driver's audio callback with two input and two output channels.
// Pending post-actions are drained first, so no block ever observes a
// partially mutated table.
func (e *Engine) ProcessRack(inBuf, outBuf [][]float32, frames uint32) {
	e.processPendingEvents()

	out0 := outBuf[0][:frames]
	out1 := outBuf[1][:frames]
	in0 := inBuf[0][:frames]
	in1 := inBuf[1][:frames]

	zeroFloats(out0)
	zeroFloats(out1)

	processed := false
	count := e.curPluginCount.Load()

	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin == nil || !plugin.Enabled() {
			continue
		}

		if processed {
			// Previous outputs become this plugin's inputs.
			copy(in0, out0)
			copy(in1, out1)
			copy(e.rackEventsIn, e.rackEventsOut)

			zeroFloats(out0)
			zeroFloats(out1)
			zeroEvents(e.rackEventsOut)
		}

		if client := e.slots[i].client; client != nil {
			client.initBuffers(e)
		}

		plugin.Process(inBuf, outBuf, frames)

		// A generator passes the upstream signal through untouched.
		if plugin.AudioInCount() == 0 {
			for j := uint32(0); j < frames; j++ {
				out0[j] += in0[j]
				out1[j] += in1[j]
			}
		}

		// A plugin without MIDI outputs passes the event bus through.
		if plugin.MidiOutCount() == 0 {
			copy(e.rackEventsOut, e.rackEventsIn)
		}

		e.slots[i].setPeaks(
			[2]float32{absPeak(in0), absPeak(in1)},
			[2]float32{absPeak(out0), absPeak(out1)},
		)

		processed = true
	}

	// Empty rack: plain pass-through.
	if !processed {
		copy(out0, in0)
		copy(out1, in1)
	}
}
