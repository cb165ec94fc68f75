// Package project persists the engine's plugin table as a CARLA-PRESET
// XML document and restores it by re-dispatching each entry through the
// plugin loaders.
package project

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
	"github.com/audiohost/plughost/engine"
)

const (
	fileVersion = "0.5.0"
	fileHeader  = "<?xml version='1.0' encoding='UTF-8'?>\n<!DOCTYPE CARLA-PRESET>\n"
)

type document struct {
	XMLName  xml.Name             `xml:"CARLA-PRESET"`
	Version  string               `xml:"VERSION,attr"`
	EngineID string               `xml:"ENGINE-ID,attr,omitempty"`
	Plugins  []plughost.SaveState `xml:"Plugin"`
}

// Save writes one plugin-state element per active plugin, in id order.
func Save(e *engine.Engine, filename string) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "Save",
		"filename": filename,
	})

	doc := document{
		Version:  fileVersion,
		EngineID: e.InstanceID().String(),
	}

	count := e.CurrentPluginCount()
	for i := uint32(0); i < count; i++ {
		plugin, err := e.GetPlugin(i)
		if err != nil || plugin == nil || !plugin.Enabled() {
			continue
		}
		doc.Plugins = append(doc.Plugins, plugin.SaveState())
	}

	body, err := xml.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("%w: %v", plughost.ErrIOFailed, err)
	}

	if err := os.WriteFile(filename, append([]byte(fileHeader), append(body, '\n')...), 0o644); err != nil {
		log.WithError(err).Error("project save failed")
		return fmt.Errorf("%w: %v", plughost.ErrIOFailed, err)
	}

	log.WithField("plugins", len(doc.Plugins)).Info("project saved")
	return nil
}

// Load clears the plugin table and rebuilds it from a project file. An
// entry whose format has no registered loader fails alone; the rest of the
// project still loads. The first per-entry failure is reported after all
// entries have been attempted.
func Load(e *engine.Engine, filename string) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "Load",
		"filename": filename,
	})

	raw, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).Error("project load failed")
		return fmt.Errorf("%w: %v", plughost.ErrIOFailed, err)
	}

	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", plughost.ErrIOFailed, err)
	}
	if doc.Version != fileVersion {
		log.WithField("version", doc.Version).Warn("project file version differs")
	}

	e.RemoveAllPlugins()

	var firstErr error
	for _, state := range doc.Plugins {
		ptype := plughost.PluginTypeFromString(state.Type)
		btype := plughost.BinaryTypeFromString(state.Binary)

		if err := e.AddPlugin(btype, ptype, state.Filename, state.Name, state.Label, nil); err != nil {
			log.WithFields(logrus.Fields{
				"name": state.Name,
				"type": state.Type,
			}).WithError(err).Error("skipping plugin entry")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		id := e.CurrentPluginCount() - 1
		plugin, err := e.GetPlugin(id)
		if err != nil {
			continue
		}
		for _, p := range state.Parameters {
			plugin.SetParameterValue(p.Index, p.Value)
		}
		plugin.SetEnabled(state.Active)
	}

	log.WithField("plugins", e.CurrentPluginCount()).Info("project loaded")
	return firstErr
}
