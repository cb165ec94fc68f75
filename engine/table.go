package engine

import (
	"math"
	"sync/atomic"

	"github.com/audiohost/plughost"
)

// pluginSlot is one entry of the fixed plugin table. Peak values are stored
// as float bits so the RT thread can publish them without a lock; readers
// accept whatever block they land on.
type pluginSlot struct {
	plugin plughost.Plugin
	client *Client

	// Patchbay scratch: stable references to the plugin's owned audio
	// port buffers, and the per-block reslices handed to Process. Built
	// on the control thread at install time so the RT path never
	// allocates.
	audioIn  []*AudioPort
	audioOut []*AudioPort
	procIn   [][]float32
	procOut  [][]float32

	inPeak  [plughost.MaxPeaks]atomic.Uint32
	outPeak [plughost.MaxPeaks]atomic.Uint32
}

func (s *pluginSlot) cachePortBuffers() {
	s.audioIn = s.audioIn[:0]
	s.audioOut = s.audioOut[:0]
	if s.client == nil {
		s.procIn = nil
		s.procOut = nil
		return
	}
	for _, p := range s.client.Ports() {
		ap, ok := p.(*AudioPort)
		if !ok {
			continue
		}
		if ap.IsInput() {
			s.audioIn = append(s.audioIn, ap)
		} else {
			s.audioOut = append(s.audioOut, ap)
		}
	}
	s.procIn = make([][]float32, len(s.audioIn))
	s.procOut = make([][]float32, len(s.audioOut))
}

func (s *pluginSlot) clear() {
	s.plugin = nil
	s.client = nil
	s.audioIn = nil
	s.audioOut = nil
	s.procIn = nil
	s.procOut = nil
}

// moveFrom shifts another slot's occupants into this one during
// compaction. Atomic peak fields stay in place; only values move.
func (s *pluginSlot) moveFrom(src *pluginSlot) {
	s.plugin = src.plugin
	s.client = src.client
	s.audioIn = src.audioIn
	s.audioOut = src.audioOut
	s.procIn = src.procIn
	s.procOut = src.procOut
}

func (s *pluginSlot) sliceProcBuffers(frames uint32) {
	for i, p := range s.audioIn {
		s.procIn[i] = p.buffer[:frames]
	}
	for i, p := range s.audioOut {
		s.procOut[i] = p.buffer[:frames]
	}
}

func (s *pluginSlot) zeroPeaks() {
	for i := range s.inPeak {
		s.inPeak[i].Store(0)
		s.outPeak[i].Store(0)
	}
}

func (s *pluginSlot) setPeaks(in, out [plughost.MaxPeaks]float32) {
	for i := range in {
		s.inPeak[i].Store(math.Float32bits(in[i]))
		s.outPeak[i].Store(math.Float32bits(out[i]))
	}
}

// clientOwner is satisfied by plugins that expose their engine client. The
// engine uses it to drive per-block port initialization.
type clientOwner interface {
	Client() *Client
}

// CurrentPluginCount returns the size of the occupied table prefix.
func (e *Engine) CurrentPluginCount() uint32 {
	return e.curPluginCount.Load()
}

// MaxPluginNumber returns the table capacity for the active process mode.
func (e *Engine) MaxPluginNumber() uint32 {
	return e.maxPluginNumber
}

// GetPlugin returns the plugin at id, bounds-checked against the occupied
// prefix.
func (e *Engine) GetPlugin(id uint32) (plughost.Plugin, error) {
	if id >= e.curPluginCount.Load() || e.slots == nil {
		return nil, plughost.ErrPluginNotFound
	}
	return e.slots[id].plugin, nil
}

// GetPluginUnchecked skips the bounds check; for use on the RT path where
// the caller already holds a valid index.
func (e *Engine) GetPluginUnchecked(id uint32) plughost.Plugin {
	return e.slots[id].plugin
}

// InputPeak returns the last recorded input peak for a plugin channel.
// Values are advisory; torn reads across blocks are accepted.
func (e *Engine) InputPeak(pluginID uint32, channel uint16) float32 {
	if pluginID >= e.curPluginCount.Load() || channel >= plughost.MaxPeaks {
		return 0
	}
	return math.Float32frombits(e.slots[pluginID].inPeak[channel].Load())
}

// OutputPeak returns the last recorded output peak for a plugin channel.
func (e *Engine) OutputPeak(pluginID uint32, channel uint16) float32 {
	if pluginID >= e.curPluginCount.Load() || channel >= plughost.MaxPeaks {
		return 0
	}
	return math.Float32frombits(e.slots[pluginID].outPeak[channel].Load())
}

// doPluginRemove executes the staged removal: null the slot, shrink the
// occupied prefix, and shift every later plugin one slot down, renumbering
// as it goes. Runs on the RT thread via the post-action drain, or on the
// control thread when the engine is stopped. No block observes a partial
// shift because the drain happens at the block boundary.
func (e *Engine) doPluginRemove(unlock bool) {
	count := e.curPluginCount.Load()
	if count == 0 {
		e.nextAction.opcode.Store(postActionNull)
		if unlock {
			e.nextAction.mutex.Unlock()
		}
		return
	}
	count--
	e.curPluginCount.Store(count)

	id := e.nextAction.pluginID.Load()

	e.slots[id].clear()

	for i := id; i < count; i++ {
		next := e.slots[i+1].plugin
		if next == nil {
			break
		}
		next.SetID(i)
		e.slots[i].moveFrom(&e.slots[i+1])
		e.slots[i].zeroPeaks()
	}
	e.slots[count].clear()
	e.slots[count].zeroPeaks()

	e.nextAction.opcode.Store(postActionNull)
	if unlock {
		e.nextAction.mutex.Unlock()
	}
}

// doIdle is the no-op post-action used as a barrier: it proves the RT
// thread reached a block boundary.
func (e *Engine) doIdle(unlock bool) {
	e.nextAction.opcode.Store(postActionNull)
	if unlock {
		e.nextAction.mutex.Unlock()
	}
}
