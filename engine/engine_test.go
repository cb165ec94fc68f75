package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiohost/plughost"
)

// checkTableDensity asserts the occupied-prefix invariant: every slot
// below the count holds a plugin whose id equals its index, every slot
// above is empty.
func checkTableDensity(t *testing.T, e *Engine) {
	t.Helper()
	count := e.CurrentPluginCount()
	for i := uint32(0); i < count; i++ {
		plugin, err := e.GetPlugin(i)
		require.NoError(t, err)
		require.NotNil(t, plugin)
		require.Equal(t, i, plugin.ID(), "plugin id must equal slot index")
	}
	for i := count; i < e.MaxPluginNumber(); i++ {
		require.Nil(t, e.slots[i].plugin)
	}
}

func TestInitRequiresClientName(t *testing.T) {
	registerMockLoader()
	e := New(newStubBackend(false), plughost.DefaultOptions())
	err := e.Init("")
	require.ErrorIs(t, err, plughost.ErrInvalidArgument)
	assert.NotEmpty(t, e.LastError())
}

func TestInitTwiceFails(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	require.ErrorIs(t, e.Init("again"), plughost.ErrAlreadyRunning)
}

func TestInitSizesTableByMode(t *testing.T) {
	cases := []struct {
		mode plughost.ProcessMode
		want uint32
	}{
		{plughost.ProcessModeSingleClient, plughost.MaxDefaultPlugins},
		{plughost.ProcessModeMultipleClients, plughost.MaxDefaultPlugins},
		{plughost.ProcessModeContinuousRack, plughost.MaxRackPlugins},
		{plughost.ProcessModePatchbay, plughost.MaxPatchbayPlugins},
		{plughost.ProcessModeBridge, 1},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			registerMockLoader()
			opts := plughost.DefaultOptions()
			opts.ProcessMode = tc.mode
			e := New(newStubBackend(false), opts)
			require.NoError(t, e.Init("test"))
			defer e.Close()
			assert.Equal(t, tc.want, e.MaxPluginNumber())
		})
	}
}

func TestAddPluginAssignsSequentialIDs(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	var added []uint32
	e.SetCallback(func(action plughost.CallbackType, pluginID uint32, _, _ int32, _ float32, _ string) {
		if action == plughost.CallbackPluginAdded {
			added = append(added, pluginID)
		}
	})

	addNamed(t, e, "a")
	addNamed(t, e, "b")
	addNamed(t, e, "c")

	require.Equal(t, uint32(3), e.CurrentPluginCount())
	assert.Equal(t, []uint32{0, 1, 2}, added)
	checkTableDensity(t, e)
}

func TestAddPluginLoaderFailure(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	err = e.AddPlugin(plughost.BinaryNative, plughost.PluginInternal, "", "", "fail", nil)
	require.ErrorIs(t, err, plughost.ErrLoaderFailed)
	assert.Equal(t, "mock loader refused to load this plugin", e.LastError())
	assert.Equal(t, uint32(0), e.CurrentPluginCount())
}

func TestAddPluginNoLoaderRegistered(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	err = e.AddPlugin(plughost.BinaryNative, plughost.PluginLV2, "/tmp/x.lv2", "", "x", nil)
	require.ErrorIs(t, err, plughost.ErrLoaderFailed)
	assert.Contains(t, e.LastError(), "No loader registered")
}

func TestAddPluginAtCapacity(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	for i := uint32(0); i < plughost.MaxRackPlugins; i++ {
		addNamed(t, e, "p")
	}
	require.Equal(t, uint32(plughost.MaxRackPlugins), e.CurrentPluginCount())

	err = e.AddPlugin(plughost.BinaryNative, plughost.PluginInternal, "", "p", "mock", nil)
	require.ErrorIs(t, err, plughost.ErrAtCapacity)
	assert.Equal(t, "Maximum number of plugins reached", e.LastError())

	// A removal frees one slot; the next add succeeds again.
	require.NoError(t, e.RemovePlugin(3))
	require.NoError(t, e.AddPlugin(plughost.BinaryNative, plughost.PluginInternal, "", "q", "mock", nil))
	assert.Equal(t, uint32(plughost.MaxRackPlugins), e.CurrentPluginCount())
	checkTableDensity(t, e)
}

func TestRemovePluginCompacts(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	addNamed(t, e, "a")
	addNamed(t, e, "b")
	addNamed(t, e, "c")

	keep1, _ := e.GetPlugin(1)
	keep2, _ := e.GetPlugin(2)

	var removed []uint32
	e.SetCallback(func(action plughost.CallbackType, pluginID uint32, _, _ int32, _ float32, _ string) {
		if action == plughost.CallbackPluginRemoved {
			removed = append(removed, pluginID)
		}
	})

	require.NoError(t, e.RemovePlugin(0))

	require.Equal(t, uint32(2), e.CurrentPluginCount())
	assert.Equal(t, []uint32{0}, removed)
	checkTableDensity(t, e)

	// Every survivor shifted one slot down, order preserved.
	got0, _ := e.GetPlugin(0)
	got1, _ := e.GetPlugin(1)
	assert.Same(t, keep1, got0)
	assert.Same(t, keep2, got1)
}

func TestRemovePluginUnknownID(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	addNamed(t, e, "a")
	require.ErrorIs(t, e.RemovePlugin(5), plughost.ErrPluginNotFound)
	assert.Equal(t, "Could not find plugin to remove", e.LastError())
}

func TestAddRemoveSequencesKeepDensity(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		count := e.CurrentPluginCount()
		if count == 0 || (count < e.MaxPluginNumber() && rng.Intn(2) == 0) {
			addNamed(t, e, "p")
		} else {
			require.NoError(t, e.RemovePlugin(uint32(rng.Intn(int(count)))))
		}
		checkTableDensity(t, e)
	}
}

func TestRemoveAllPlugins(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 5; i++ {
		addNamed(t, e, "p")
	}
	e.RemoveAllPlugins()
	assert.Equal(t, uint32(0), e.CurrentPluginCount())
	checkTableDensity(t, e)
}

func TestOptionGatingWhileRunning(t *testing.T) {
	e, backend, err := newRackEngine(true)
	require.NoError(t, err)
	defer func() {
		// Drivers stop their callback before Close runs its drain.
		require.NoError(t, backend.Stop())
		require.NoError(t, e.Close())
	}()

	require.True(t, e.IsRunning())

	err = e.SetOption(plughost.OptionProcessMode, int(plughost.ProcessModePatchbay), "")
	require.ErrorIs(t, err, plughost.ErrAlreadyRunning)
	assert.Equal(t, plughost.ProcessModeContinuousRack, e.Options().ProcessMode, "rejected option must not mutate")
	assert.NotEmpty(t, e.LastError())

	for _, opt := range []plughost.OptionsType{
		plughost.OptionMaxParameters,
		plughost.OptionPreferredBufferSize,
		plughost.OptionPreferredSampleRate,
		plughost.OptionForceStereo,
		plughost.OptionUseDssiVstChunks,
		plughost.OptionPreferPluginBridges,
		plughost.OptionPreferUiBridges,
		plughost.OptionOscUiTimeout,
	} {
		require.ErrorIs(t, e.SetOption(opt, 1, ""), plughost.ErrAlreadyRunning, opt.String())
	}

	// Path options are not gated.
	require.NoError(t, e.SetOption(plughost.OptionPathBridgeWin64, 0, "/opt/bridge-win64"))
	assert.Equal(t, "/opt/bridge-win64", e.Options().Bridges.Win64)
	require.NoError(t, e.SetOption(plughost.OptionProcessName, 0, "myhost"))
}

func TestOptionValidation(t *testing.T) {
	registerMockLoader()
	e := New(newStubBackend(false), plughost.DefaultOptions())

	require.ErrorIs(t, e.SetOption(plughost.OptionProcessMode, 99, ""), plughost.ErrInvalidArgument)
	require.ErrorIs(t, e.SetOption(plughost.OptionProcessMode, int(plughost.ProcessModeBridge), ""), plughost.ErrInvalidArgument)
	require.ErrorIs(t, e.SetOption(plughost.OptionMaxParameters, -1, ""), plughost.ErrInvalidArgument)
	require.ErrorIs(t, e.SetOption(plughost.OptionOscUiTimeout, -5, ""), plughost.ErrInvalidArgument)

	require.NoError(t, e.SetOption(plughost.OptionProcessMode, int(plughost.ProcessModePatchbay), ""))
	assert.Equal(t, plughost.ProcessModePatchbay, e.Options().ProcessMode)
}

func TestBridgePolicyChecks(t *testing.T) {
	registerMockLoader()
	opts := plughost.DefaultOptions()
	opts.ProcessMode = plughost.ProcessModeContinuousRack
	opts.PreferPluginBridges = true
	opts.Bridges.Posix64 = "/usr/lib/bridge-posix64"

	e := New(newStubBackend(false), opts)
	require.NoError(t, e.Init("test"))
	defer e.Close()

	err := e.AddPlugin(plughost.BinaryPosix64, plughost.PluginInternal, "", "", "mock", nil)
	require.ErrorIs(t, err, plughost.ErrUnsupportedBridgeMode)
	assert.Contains(t, e.LastError(), "Multi-Client")

	// Without a configured bridge binary the policy does not trigger.
	require.NoError(t, e.AddPlugin(plughost.BinaryWin32, plughost.PluginInternal, "", "", "mock", nil))
}

func TestBufferSizeAndSampleRateFanOut(t *testing.T) {
	e, _, err := newRackEngine(false)
	require.NoError(t, err)
	defer e.Close()

	addNamed(t, e, "a")
	addNamed(t, e, "b")
	p0, _ := e.GetPlugin(0)
	p1, _ := e.GetPlugin(1)
	p1.SetEnabled(false)

	e.SetBufferSize(1024)
	e.SetSampleRate(96000)

	assert.Equal(t, uint32(1024), e.BufferSize())
	assert.Equal(t, 96000.0, e.SampleRate())

	// Only enabled plugins hear the change.
	assert.Equal(t, uint32(1024), p0.(*mockPlugin).lastBufferSize.Load())
	assert.Equal(t, uint64(96000), p0.(*mockPlugin).lastSampleRate.Load())
	assert.Equal(t, uint32(0), p1.(*mockPlugin).lastBufferSize.Load())
	assert.Equal(t, uint64(0), p1.(*mockPlugin).lastSampleRate.Load())
}

func TestCloseClearsEverything(t *testing.T) {
	e, backend, err := newRackEngine(false)
	require.NoError(t, err)

	addNamed(t, e, "a")
	require.NoError(t, e.Close())

	assert.False(t, backend.Running())
	assert.Equal(t, uint32(0), e.CurrentPluginCount())
	assert.Equal(t, uint32(0), e.MaxPluginNumber())

	_, err = e.GetPlugin(0)
	assert.True(t, errors.Is(err, plughost.ErrPluginNotFound))

	require.ErrorIs(t, e.Close(), plughost.ErrNotRunning)
}
