package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// Client is a plugin's handle into the engine: it owns the plugin's ports
// and gates its participation in processing. One client per plugin.
type Client struct {
	engineType  plughost.EngineType
	processMode plughost.ProcessMode
	active      bool
	latency     uint32
	ports       []Port
}

func newClient(engineType plughost.EngineType, processMode plughost.ProcessMode) *Client {
	return &Client{
		engineType:  engineType,
		processMode: processMode,
	}
}

// Activate marks the client as participating in processing. ProcessPatchbay
// skips plugins whose client is not active; ProcessRack checks only the
// plugin's Enabled flag and does not read IsActive.
func (c *Client) Activate()   { c.active = true }
func (c *Client) Deactivate() { c.active = false }

func (c *Client) IsActive() bool { return c.active }

func (c *Client) EngineType() plughost.EngineType   { return c.engineType }
func (c *Client) ProcessMode() plughost.ProcessMode { return c.processMode }

func (c *Client) Latency() uint32 { return c.latency }

func (c *Client) SetLatency(samples uint32) { c.latency = samples }

// AddPort creates a port of the requested kind and takes ownership of it.
// Names longer than StrMax are truncated; uniqueness is not enforced.
func (c *Client) AddPort(portType plughost.PortType, name string, isInput bool) Port {
	if len(name) > plughost.StrMax {
		name = name[:plughost.StrMax]
	}

	var port Port
	switch portType {
	case plughost.PortTypeAudio:
		port = newAudioPort(name, isInput, c.processMode)
	case plughost.PortTypeEvent:
		port = newEventPort(name, isInput, c.processMode)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "AddPort",
			"name":     name,
			"input":    isInput,
		}).Error("invalid port type")
		return nil
	}

	c.ports = append(c.ports, port)
	return port
}

// Ports returns the client's ports in creation order.
func (c *Client) Ports() []Port { return c.ports }

// initBuffers prepares every port for the next block.
func (c *Client) initBuffers(e *Engine) {
	for _, p := range c.ports {
		p.InitBuffer(e)
	}
}
