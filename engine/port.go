package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/audiohost/plughost"
)

// Port is a typed I/O endpoint attached to a plugin's engine client.
// Direction and process mode are fixed at creation.
type Port interface {
	Name() string
	IsInput() bool
	ProcessMode() plughost.ProcessMode
	Type() plughost.PortType

	// InitBuffer prepares the port for the next block: patchbay output
	// buffers are zeroed, rack event ports acquire the engine's shared
	// buffer for their direction. Rack buffers are not zeroed here.
	InitBuffer(e *Engine)
}

type basePort struct {
	name        string
	isInput     bool
	processMode plughost.ProcessMode
}

func (p *basePort) Name() string                      { return p.name }
func (p *basePort) IsInput() bool                     { return p.isInput }
func (p *basePort) ProcessMode() plughost.ProcessMode { return p.processMode }

// AudioPort exposes a float32 buffer of the current block length. In
// patchbay mode the port owns its buffer; in other modes it borrows the
// slice the driver supplies each block.
type AudioPort struct {
	basePort
	buffer []float32
}

func newAudioPort(name string, isInput bool, processMode plughost.ProcessMode) *AudioPort {
	p := &AudioPort{basePort: basePort{name: name, isInput: isInput, processMode: processMode}}
	if processMode == plughost.ProcessModePatchbay {
		p.buffer = make([]float32, plughost.PatchbayBufferSize)
	}
	return p
}

func (p *AudioPort) Type() plughost.PortType { return plughost.PortTypeAudio }

// Buffer returns the port's current buffer. Nil until the driver supplies
// one (non-patchbay modes) or the port is created (patchbay).
func (p *AudioPort) Buffer() []float32 { return p.buffer }

// SetBuffer installs the driver-supplied slice for this block. Only
// meaningful outside patchbay mode, where the port does not own storage.
func (p *AudioPort) SetBuffer(buf []float32) {
	if p.processMode == plughost.ProcessModePatchbay {
		return
	}
	p.buffer = buf
}

func (p *AudioPort) InitBuffer(*Engine) {
	if p.processMode == plughost.ProcessModePatchbay && !p.isInput {
		for i := range p.buffer {
			p.buffer[i] = 0
		}
	}
}

// EventPort stores typed control/MIDI events. Rack ports point into the two
// engine-owned shared buffers; patchbay ports own a fixed-capacity array.
type EventPort struct {
	basePort
	maxEventCount uint32
	buffer        []Event
}

func newEventPort(name string, isInput bool, processMode plughost.ProcessMode) *EventPort {
	p := &EventPort{basePort: basePort{name: name, isInput: isInput, processMode: processMode}}
	if processMode == plughost.ProcessModeContinuousRack {
		p.maxEventCount = plughost.RackEventCount
	} else {
		p.maxEventCount = plughost.PatchbayEventCount
	}
	if processMode == plughost.ProcessModePatchbay {
		p.buffer = make([]Event, plughost.PatchbayEventCount)
	}
	return p
}

func (p *EventPort) Type() plughost.PortType { return plughost.PortTypeEvent }

func (p *EventPort) InitBuffer(e *Engine) {
	if e == nil {
		return
	}
	switch p.processMode {
	case plughost.ProcessModeContinuousRack:
		p.buffer = e.RackEventBuffer(p.isInput)
	case plughost.ProcessModePatchbay:
		if !p.isInput {
			zeroEvents(p.buffer)
		}
	}
}

// EventCount returns the number of events stored, by scanning for the first
// Null sentinel. Non-input ports and missing buffers count as empty.
func (p *EventPort) EventCount() uint32 {
	if !p.isInput || p.buffer == nil {
		return 0
	}
	switch p.processMode {
	case plughost.ProcessModeContinuousRack, plughost.ProcessModePatchbay:
		return eventCount(p.buffer)
	}
	return 0
}

// GetEvent returns the event at index. Out-of-range reads and reads on
// non-input ports return the process-wide Null sentinel.
func (p *EventPort) GetEvent(index uint32) *Event {
	if !p.isInput || p.buffer == nil || index >= p.maxEventCount {
		return &fallbackEvent
	}
	switch p.processMode {
	case plughost.ProcessModeContinuousRack, plughost.ProcessModePatchbay:
		return &p.buffer[index]
	}
	return &fallbackEvent
}

// WriteControlEvent appends a control event to an output port. Violated
// preconditions return without writing.
func (p *EventPort) WriteControlEvent(time uint32, channel uint8, ctype ControlEventType, param uint16, value float64) {
	if p.isInput || p.buffer == nil {
		return
	}
	if ctype == ControlEventTypeNull {
		return
	}
	if channel >= plughost.MaxMIDIChannels {
		return
	}
	if value < 0.0 || value > 1.0 {
		return
	}
	if ctype == ControlEventTypeParameter && isBankSelect(param) {
		logrus.WithFields(logrus.Fields{
			"function": "WriteControlEvent",
			"param":    param,
		}).Warn("bank-select controller cannot be a parameter event")
		return
	}
	switch p.processMode {
	case plughost.ProcessModeContinuousRack, plughost.ProcessModePatchbay:
		writeControl(p.buffer, time, channel, ctype, param, value)
	}
}

// WriteMidiEvent appends a short MIDI message to an output port.
func (p *EventPort) WriteMidiEvent(time uint32, channel, port uint8, data []byte) {
	if p.isInput || p.buffer == nil {
		return
	}
	if channel >= plughost.MaxMIDIChannels {
		return
	}
	if len(data) == 0 || len(data) > 3 {
		return
	}
	switch p.processMode {
	case plughost.ProcessModeContinuousRack, plughost.ProcessModePatchbay:
		writeMidi(p.buffer, time, channel, port, data)
	}
}
