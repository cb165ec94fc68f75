package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiohost/plughost"
)

func addNamed(t *testing.T, e *Engine, name string) {
	t.Helper()
	require.NoError(t, e.AddPlugin(plughost.BinaryNative, plughost.PluginInternal, "", name, "mock", nil))
}

func TestUniqueNameUnusedStaysUnchanged(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "synth", e.GetNewUniquePluginName("synth"))
}

func TestUniqueNameEmptyInput(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "(No name)", e.GetNewUniquePluginName(""))
}

func TestUniqueNameReplacesColon(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "a.b", e.GetNewUniquePluginName("a:b"))
}

func TestUniqueNameTruncates(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	long := strings.Repeat("x", 300)
	got := e.GetNewUniquePluginName(long)
	assert.Len(t, got, e.MaxClientNameSize()-6)
}

func TestUniqueNameIncrementSequence(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	addNamed(t, e, "synth")
	addNamed(t, e, "synth") // becomes "synth (2)"

	plugin, err := e.GetPlugin(1)
	require.NoError(t, err)
	require.Equal(t, "synth (2)", plugin.Name())

	// With "synth" and "synth (2)" taken, the next derivation is (3).
	assert.Equal(t, "synth (3)", e.GetNewUniquePluginName("synth"))

	// Seven more additions walk the suffix up to (10), crossing the
	// one-digit to two-digit rollover at 9.
	for i := 0; i < 7; i++ {
		addNamed(t, e, "synth")
	}
	assert.Equal(t, "synth (10)", e.GetNewUniquePluginName("synth"))
}

func TestUniqueNameNeverCollides(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 12; i++ {
		name := e.GetNewUniquePluginName("drum")
		count := e.CurrentPluginCount()
		for j := uint32(0); j < count; j++ {
			plugin, err := e.GetPlugin(j)
			require.NoError(t, err)
			require.NotEqual(t, plugin.Name(), name)
		}
		addNamed(t, e, "drum")
	}
}

func TestIncrementNameTwoDigit(t *testing.T) {
	assert.Equal(t, "a (2)", incrementName("a"))
	assert.Equal(t, "a (3)", incrementName("a (2)"))
	assert.Equal(t, "a (10)", incrementName("a (9)"))
	assert.Equal(t, "a (11)", incrementName("a (10)"))
	assert.Equal(t, "a (20)", incrementName("a (19)"))
}
