package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

// InternalFactory builds one built-in plugin.
type InternalFactory func(init engine.PluginInit) (plughost.Plugin, error)

var (
	internalsMu sync.RWMutex
	internals   = map[string]InternalFactory{}
)

// RegisterInternal adds a built-in plugin under a label.
func RegisterInternal(label string, factory InternalFactory) {
	internalsMu.Lock()
	defer internalsMu.Unlock()
	internals[label] = factory
}

// InternalLabels lists the registered built-in labels, sorted.
func InternalLabels() []string {
	internalsMu.RLock()
	defer internalsMu.RUnlock()
	labels := make([]string, 0, len(internals))
	for label := range internals {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// loadInternal is the loader for the internal plugin format: the label
// selects a built-in.
func loadInternal(init engine.PluginInit) (plughost.Plugin, error) {
	internalsMu.RLock()
	factory := internals[init.Label]
	internalsMu.RUnlock()

	if factory == nil {
		logrus.WithFields(logrus.Fields{
			"function": "loadInternal",
			"label":    init.Label,
		}).Error("unknown internal plugin label")
		return nil, fmt.Errorf("unknown internal plugin label %q", init.Label)
	}
	return factory(init)
}

func init() {
	RegisterInternal("null", newNullPlugin)
	RegisterInternal("gain", newGainPlugin)
	RegisterInternal("midithru", newMidiThruPlugin)

	engine.RegisterLoader(plughost.PluginInternal, loadInternal)
}
