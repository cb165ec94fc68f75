package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/audiohost/plughost"
)

// Pseudo plugin ids addressing the driver's own ports in the patchbay
// connection graph.
const (
	PatchbaySystemInput  uint32 = 0xFFFFFFFF
	PatchbaySystemOutput uint32 = 0xFFFFFFFE
)

// PatchbayConnection routes one source's audio outputs into one target's
// inputs.
type PatchbayConnection struct {
	Source uint32
	Target uint32
}

type patchbayState struct {
	conns []PatchbayConnection
	order []uint32
}

// PatchbayGraph is the connection manager behind patchbay mode. Mutations
// come from the control surface; the RT thread reads an immutable snapshot
// through an atomic pointer, so processing never takes a lock.
type PatchbayGraph struct {
	mu    sync.Mutex
	state atomic.Pointer[patchbayState]
}

// NewPatchbayGraph returns an empty graph whose drive order is ascending
// plugin id.
func NewPatchbayGraph() *PatchbayGraph {
	g := &PatchbayGraph{}
	g.state.Store(&patchbayState{order: ascendingOrder()})
	return g
}

func ascendingOrder() []uint32 {
	order := make([]uint32, plughost.MaxPatchbayPlugins)
	for i := range order {
		order[i] = uint32(i)
	}
	return order
}

// Connect adds a routing edge. Self-connections and duplicates are
// rejected; an edge that would make the plugin graph cyclic is rejected so
// a topological drive order always exists.
func (g *PatchbayGraph) Connect(source, target uint32) error {
	if source == target {
		return fmt.Errorf("%w: cannot connect %d to itself", plughost.ErrInvalidArgument, source)
	}
	if source == PatchbaySystemOutput || target == PatchbaySystemInput {
		return fmt.Errorf("%w: wrong direction for system port", plughost.ErrInvalidArgument)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.state.Load()
	for _, c := range old.conns {
		if c.Source == source && c.Target == target {
			return fmt.Errorf("%w: connection exists", plughost.ErrInvalidArgument)
		}
	}

	conns := append(append([]PatchbayConnection(nil), old.conns...), PatchbayConnection{Source: source, Target: target})
	order, ok := topologicalOrder(conns)
	if !ok {
		return fmt.Errorf("%w: connection would create a cycle", plughost.ErrInvalidArgument)
	}

	g.state.Store(&patchbayState{conns: conns, order: order})
	return nil
}

// Disconnect removes a routing edge.
func (g *PatchbayGraph) Disconnect(source, target uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.state.Load()
	conns := make([]PatchbayConnection, 0, len(old.conns))
	found := false
	for _, c := range old.conns {
		if c.Source == source && c.Target == target {
			found = true
			continue
		}
		conns = append(conns, c)
	}
	if !found {
		return fmt.Errorf("%w: connection not found", plughost.ErrInvalidArgument)
	}

	order, _ := topologicalOrder(conns)
	g.state.Store(&patchbayState{conns: conns, order: order})
	return nil
}

// Connections returns a copy of the current edge list.
func (g *PatchbayGraph) Connections() []PatchbayConnection {
	st := g.state.Load()
	return append([]PatchbayConnection(nil), st.conns...)
}

// topologicalOrder runs Kahn's algorithm over the plugin-to-plugin edges,
// breaking ties by ascending id, over the full id range so the result
// stays valid as the table grows. Returns ok=false on a cycle.
func topologicalOrder(conns []PatchbayConnection) ([]uint32, bool) {
	const n = plughost.MaxPatchbayPlugins

	indegree := make([]int, n)
	succ := make(map[uint32][]uint32, len(conns))
	for _, c := range conns {
		if c.Source >= n || c.Target >= n {
			continue // system edges do not constrain the order
		}
		succ[c.Source] = append(succ[c.Source], c.Target)
		indegree[c.Target]++
	}

	order := make([]uint32, 0, n)
	used := make([]bool, n)
	for len(order) < n {
		picked := -1
		for i := 0; i < n; i++ {
			if !used[i] && indegree[i] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			return nil, false
		}
		used[picked] = true
		order = append(order, uint32(picked))
		for _, t := range succ[uint32(picked)] {
			indegree[t]--
		}
	}
	return order, true
}

// ProcessPatchbay renders one block of the patchbay topology. Each enabled
// plugin is driven once, in the graph's topological order, against its own
// port buffers; connections deliver summed audio between ports and the
// driver's system ports.
func (e *Engine) ProcessPatchbay(inBuf, outBuf [][]float32, frames uint32) {
	e.processPendingEvents()

	for _, buf := range outBuf {
		zeroFloats(buf[:frames])
	}

	if e.patchbay == nil {
		return
	}
	st := e.patchbay.state.Load()
	count := e.curPluginCount.Load()

	for _, id := range st.order {
		if id >= count {
			continue
		}
		plugin := e.slots[id].plugin
		client := e.slots[id].client
		if plugin == nil || client == nil || !plugin.Enabled() || !client.IsActive() {
			continue
		}

		client.initBuffers(e)
		e.slots[id].sliceProcBuffers(frames)

		// Zero inputs, then sum everything routed here.
		for _, in := range e.slots[id].procIn {
			zeroFloats(in)
		}
		for _, c := range st.conns {
			if c.Target != id {
				continue
			}
			if c.Source == PatchbaySystemInput {
				mixInto(e.slots[id].procIn, inBuf, frames)
			} else if c.Source < count {
				mixInto(e.slots[id].procIn, e.slots[c.Source].procOut, frames)
			}
		}

		plugin.Process(e.slots[id].procIn, e.slots[id].procOut, frames)

		for _, c := range st.conns {
			if c.Source == id && c.Target == PatchbaySystemOutput {
				mixInto(outBuf, e.slots[id].procOut, frames)
			}
		}

		var in, out [plughost.MaxPeaks]float32
		for ch := 0; ch < plughost.MaxPeaks; ch++ {
			if ch < len(e.slots[id].procIn) {
				in[ch] = absPeak(e.slots[id].procIn[ch])
			}
			if ch < len(e.slots[id].procOut) {
				out[ch] = absPeak(e.slots[id].procOut[ch])
			}
		}
		e.slots[id].setPeaks(in, out)
	}
}

// mixInto adds src channels into dst channels, up to the shorter list.
func mixInto(dst, src [][]float32, frames uint32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for ch := 0; ch < n; ch++ {
		d := dst[ch][:frames]
		s := src[ch][:frames]
		for j := range d {
			d[j] += s[j]
		}
	}
}
