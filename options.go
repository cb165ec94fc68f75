package plughost

import "errors"

// Error kinds reported by control-thread operations. RT-thread operations
// never return errors; invalid input there is drop-with-log.
var (
	ErrAtCapacity            = errors.New("maximum number of plugins reached")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotRunning            = errors.New("engine is not running")
	ErrAlreadyRunning        = errors.New("engine is already running")
	ErrPluginNotFound        = errors.New("plugin not found")
	ErrUnsupportedBridgeMode = errors.New("unsupported bridge mode")
	ErrLoaderFailed          = errors.New("plugin loader failed")
	ErrIOFailed              = errors.New("i/o operation failed")
)

// OptionsType selects the option mutated by Engine.SetOption.
type OptionsType int

const (
	OptionProcessName OptionsType = iota
	OptionProcessMode
	OptionMaxParameters
	OptionPreferredBufferSize
	OptionPreferredSampleRate
	OptionForceStereo
	OptionUseDssiVstChunks
	OptionPreferPluginBridges
	OptionPreferUiBridges
	OptionOscUiTimeout
	OptionPathBridgeNative
	OptionPathBridgePosix32
	OptionPathBridgePosix64
	OptionPathBridgeWin32
	OptionPathBridgeWin64
	OptionPathBridgeLV2Gtk2
	OptionPathBridgeLV2Gtk3
	OptionPathBridgeLV2Qt4
	OptionPathBridgeLV2Qt5
	OptionPathBridgeLV2Cocoa
	OptionPathBridgeLV2Windows
	OptionPathBridgeLV2X11
	OptionPathBridgeVSTCocoa
	OptionPathBridgeVSTHwnd
	OptionPathBridgeVSTX11
)

func (o OptionsType) String() string {
	names := map[OptionsType]string{
		OptionProcessName:          "ProcessName",
		OptionProcessMode:          "ProcessMode",
		OptionMaxParameters:        "MaxParameters",
		OptionPreferredBufferSize:  "PreferredBufferSize",
		OptionPreferredSampleRate:  "PreferredSampleRate",
		OptionForceStereo:          "ForceStereo",
		OptionUseDssiVstChunks:     "UseDssiVstChunks",
		OptionPreferPluginBridges:  "PreferPluginBridges",
		OptionPreferUiBridges:      "PreferUiBridges",
		OptionOscUiTimeout:         "OscUiTimeout",
		OptionPathBridgeNative:     "PathBridgeNative",
		OptionPathBridgePosix32:    "PathBridgePosix32",
		OptionPathBridgePosix64:    "PathBridgePosix64",
		OptionPathBridgeWin32:      "PathBridgeWin32",
		OptionPathBridgeWin64:      "PathBridgeWin64",
		OptionPathBridgeLV2Gtk2:    "PathBridgeLV2Gtk2",
		OptionPathBridgeLV2Gtk3:    "PathBridgeLV2Gtk3",
		OptionPathBridgeLV2Qt4:     "PathBridgeLV2Qt4",
		OptionPathBridgeLV2Qt5:     "PathBridgeLV2Qt5",
		OptionPathBridgeLV2Cocoa:   "PathBridgeLV2Cocoa",
		OptionPathBridgeLV2Windows: "PathBridgeLV2Windows",
		OptionPathBridgeLV2X11:     "PathBridgeLV2X11",
		OptionPathBridgeVSTCocoa:   "PathBridgeVSTCocoa",
		OptionPathBridgeVSTHwnd:    "PathBridgeVSTHwnd",
		OptionPathBridgeVSTX11:     "PathBridgeVSTX11",
	}
	if s, ok := names[o]; ok {
		return s
	}
	return "Unknown"
}

// BridgePaths holds the configured bridge helper binaries, keyed by what
// they bridge: a foreign ABI or a UI toolkit.
type BridgePaths struct {
	Native  string
	Posix32 string
	Posix64 string
	Win32   string
	Win64   string

	LV2Gtk2    string
	LV2Gtk3    string
	LV2Qt4     string
	LV2Qt5     string
	LV2Cocoa   string
	LV2Windows string
	LV2X11     string

	VSTCocoa string
	VSTHwnd  string
	VSTX11   string
}

// ForBinary returns the bridge binary configured for an ABI, or "".
func (p BridgePaths) ForBinary(btype BinaryType) string {
	switch btype {
	case BinaryNative:
		return p.Native
	case BinaryPosix32:
		return p.Posix32
	case BinaryPosix64:
		return p.Posix64
	case BinaryWin32:
		return p.Win32
	case BinaryWin64:
		return p.Win64
	}
	return ""
}

// Options is the engine configuration. Most fields are frozen while the
// engine is running; see Engine.SetOption for the gating rules.
type Options struct {
	ProcessName         string
	ProcessMode         ProcessMode
	MaxParameters       uint32
	PreferredBufferSize uint32
	PreferredSampleRate uint32
	ForceStereo         bool
	UseDssiVstChunks    bool
	PreferPluginBridges bool
	PreferUiBridges     bool
	OscUiTimeout        uint32
	Bridges             BridgePaths
}

// DefaultOptions mirrors the host's stand-alone defaults.
func DefaultOptions() Options {
	return Options{
		ProcessMode:         ProcessModeContinuousRack,
		MaxParameters:       200,
		PreferredBufferSize: 512,
		PreferredSampleRate: 44100,
		PreferUiBridges:     true,
		OscUiTimeout:        4000,
	}
}
