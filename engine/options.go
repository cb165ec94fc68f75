package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// SetOption mutates one engine option. Options that shape the running
// graph are rejected while the engine is running; the value is left
// unchanged and the rejection is logged and recorded as the last error.
func (e *Engine) SetOption(option plughost.OptionsType, value int, valueStr string) error {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"function": "SetOption",
		"option":   option.String(),
		"value":    value,
		"str":      valueStr,
	})

	rejectRunning := func() bool {
		if e.IsRunning() {
			e.setLastError("Cannot set this option while engine is running")
			log.Error("cannot set this option while engine is running")
			return true
		}
		return false
	}

	switch option {
	case plughost.OptionProcessName:
		e.options.ProcessName = valueStr

	case plughost.OptionProcessMode:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		mode := plughost.ProcessMode(value)
		if mode < plughost.ProcessModeSingleClient || mode > plughost.ProcessModePatchbay {
			e.setLastError("Invalid process mode")
			log.Error("invalid process mode")
			return plughost.ErrInvalidArgument
		}
		e.options.ProcessMode = mode

	case plughost.OptionMaxParameters:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		if value < 0 {
			e.setLastError("Invalid maximum parameter count")
			return plughost.ErrInvalidArgument
		}
		e.options.MaxParameters = uint32(value)

	case plughost.OptionPreferredBufferSize:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.PreferredBufferSize = uint32(value)

	case plughost.OptionPreferredSampleRate:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.PreferredSampleRate = uint32(value)

	case plughost.OptionForceStereo:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.ForceStereo = value != 0

	case plughost.OptionUseDssiVstChunks:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.UseDssiVstChunks = value != 0

	case plughost.OptionPreferPluginBridges:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.PreferPluginBridges = value != 0

	case plughost.OptionPreferUiBridges:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		e.options.PreferUiBridges = value != 0

	case plughost.OptionOscUiTimeout:
		if rejectRunning() {
			return plughost.ErrAlreadyRunning
		}
		if value < 0 {
			e.setLastError("Invalid OSC UI timeout")
			return plughost.ErrInvalidArgument
		}
		e.options.OscUiTimeout = uint32(value)

	case plughost.OptionPathBridgeNative:
		e.options.Bridges.Native = valueStr
	case plughost.OptionPathBridgePosix32:
		e.options.Bridges.Posix32 = valueStr
	case plughost.OptionPathBridgePosix64:
		e.options.Bridges.Posix64 = valueStr
	case plughost.OptionPathBridgeWin32:
		e.options.Bridges.Win32 = valueStr
	case plughost.OptionPathBridgeWin64:
		e.options.Bridges.Win64 = valueStr

	case plughost.OptionPathBridgeLV2Gtk2:
		e.options.Bridges.LV2Gtk2 = valueStr
	case plughost.OptionPathBridgeLV2Gtk3:
		e.options.Bridges.LV2Gtk3 = valueStr
	case plughost.OptionPathBridgeLV2Qt4:
		e.options.Bridges.LV2Qt4 = valueStr
	case plughost.OptionPathBridgeLV2Qt5:
		e.options.Bridges.LV2Qt5 = valueStr
	case plughost.OptionPathBridgeLV2Cocoa:
		e.options.Bridges.LV2Cocoa = valueStr
	case plughost.OptionPathBridgeLV2Windows:
		e.options.Bridges.LV2Windows = valueStr
	case plughost.OptionPathBridgeLV2X11:
		e.options.Bridges.LV2X11 = valueStr

	case plughost.OptionPathBridgeVSTCocoa:
		e.options.Bridges.VSTCocoa = valueStr
	case plughost.OptionPathBridgeVSTHwnd:
		e.options.Bridges.VSTHwnd = valueStr
	case plughost.OptionPathBridgeVSTX11:
		e.options.Bridges.VSTX11 = valueStr

	default:
		e.setLastError("Unknown option")
		log.Error("unknown option")
		return plughost.ErrInvalidArgument
	}

	return nil
}
