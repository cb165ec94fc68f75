// Command plughost runs the plugin host engine from the terminal: pick a
// driver, load built-in plugins into the rack or patchbay, and expose the
// OSC control surface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
	"github.com/audiohost/plughost/osc"
	"github.com/audiohost/plughost/plugin"
	"github.com/audiohost/plughost/project"

	_ "github.com/audiohost/plughost/driver/dummy"
	_ "github.com/audiohost/plughost/driver/jackdrv"
	_ "github.com/audiohost/plughost/driver/padrv"
)

var (
	driverName  string
	clientName  string
	modeName    string
	oscPort     int
	addPlugins  []string
	projectFile string
	saveFile    string
	testNote    bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "plughost",
	Short: "Audio plugin host engine",
	Long:  "plughost loads plugins into a rack or patchbay graph and drives them from an audio driver, with an OSC control surface.",
	RunE:  run,
}

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List available audio drivers",
	Run: func(*cobra.Command, []string) {
		for _, name := range engine.DriverNames() {
			fmt.Println(name)
		}
	},
}

var internalsCmd = &cobra.Command{
	Use:   "internals",
	Short: "List built-in plugin labels",
	Run: func(*cobra.Command, []string) {
		for _, label := range plugin.InternalLabels() {
			fmt.Println(label)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().StringVarP(&driverName, "driver", "d", "Dummy", "audio driver name (see 'plughost drivers')")
	rootCmd.Flags().StringVarP(&clientName, "name", "n", "plughost", "engine client name")
	rootCmd.Flags().StringVarP(&modeName, "mode", "m", "rack", "process mode: rack or patchbay")
	rootCmd.Flags().IntVar(&oscPort, "osc-port", 22752, "OSC control surface UDP port, 0 to disable")
	rootCmd.Flags().StringArrayVarP(&addPlugins, "add", "a", nil, "built-in plugin label to load (repeatable)")
	rootCmd.Flags().StringVarP(&projectFile, "project", "p", "", "project file to load")
	rootCmd.Flags().StringVarP(&saveFile, "save", "s", "", "project file to save on exit")
	rootCmd.Flags().BoolVar(&testNote, "test-note", false, "inject a middle-C note-on after startup")

	rootCmd.AddCommand(driversCmd, internalsCmd)
}

func run(*cobra.Command, []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	e := engine.NewDriverByName(driverName)
	if e == nil {
		return fmt.Errorf("unknown driver %q", driverName)
	}

	var mode plughost.ProcessMode
	switch modeName {
	case "rack":
		mode = plughost.ProcessModeContinuousRack
	case "patchbay":
		mode = plughost.ProcessModePatchbay
	default:
		return fmt.Errorf("unknown process mode %q", modeName)
	}
	if err := e.SetOption(plughost.OptionProcessMode, int(mode), ""); err != nil {
		return fmt.Errorf("setting process mode: %s", e.LastError())
	}

	var surface *osc.Surface
	if oscPort != 0 {
		surface = osc.NewSurface(e)
		if err := surface.Init(clientName, oscPort); err != nil {
			return err
		}
		defer surface.Close()
		e.SetControlSurface(surface)
	}

	e.SetCallback(func(action plughost.CallbackType, pluginID uint32, _, _ int32, _ float32, str string) {
		logrus.WithFields(logrus.Fields{
			"action":    action,
			"plugin_id": pluginID,
			"str":       str,
		}).Debug("engine callback")
	})

	if err := e.Init(clientName); err != nil {
		return fmt.Errorf("%s", e.LastError())
	}
	defer e.Close()

	for _, label := range addPlugins {
		if err := e.AddPlugin(plughost.BinaryNative, plughost.PluginInternal, "", "", label, nil); err != nil {
			logrus.WithField("label", label).Errorf("could not add plugin: %s", e.LastError())
		}
	}

	if projectFile != "" {
		if err := project.Load(e, projectFile); err != nil {
			logrus.WithError(err).Error("project load reported errors")
		}
	}

	if testNote {
		msg := midi.NoteOn(0, 60, 100)
		e.WriteRackMidiEvent(0, 0, 0, msg)
	}

	fmt.Printf("plughost running on %s (%s mode), %d plugin(s) loaded; ctrl-c to quit\n",
		driverName, modeName, e.CurrentPluginCount())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if saveFile != "" {
		if err := project.Save(e, saveFile); err != nil {
			logrus.WithError(err).Error("project save failed")
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
