package engine

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// Backend is the contract a driver adaptation fulfils. A backend owns the
// audio callback: on every block it writes any inbound MIDI into the shared
// rack input buffer (WriteRackMidiEvent), calls ProcessRack or
// ProcessPatchbay, and then resets both rack buffers with ClearRackEvents;
// rack output events are discarded there, not sent to a MIDI output. It
// reports buffer size and sample
// rate through SetBufferSize/SetSampleRate before the first block and on
// every change, and it must have stopped its callback before Stop returns.
type Backend interface {
	Start(e *Engine, clientName string) error
	Stop() error
	Running() bool
	Type() plughost.EngineType
	Name() string
}

// BackendFactory builds a fresh backend instance.
type BackendFactory func() Backend

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{}
)

// RegisterBackend makes a driver available to NewDriverByName. Driver
// packages call this from init; importing a driver package is what makes
// its names resolvable.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// DriverCount returns the number of registered driver names.
func DriverCount() int {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return len(backends)
}

// DriverNames returns the registered driver names, sorted.
func DriverNames() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DriverName returns the name at index into the sorted registry, or "".
func DriverName(index int) string {
	names := DriverNames()
	if index < 0 || index >= len(names) {
		return ""
	}
	return names[index]
}

// NewDriverByName builds an engine on the named backend with default
// options. Unknown names return nil.
func NewDriverByName(driverName string) *Engine {
	backendsMu.RLock()
	factory := backends[driverName]
	backendsMu.RUnlock()

	if factory == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewDriverByName",
			"driver":   driverName,
		}).Warn("unknown driver name")
		return nil
	}
	return New(factory(), plughost.DefaultOptions())
}
