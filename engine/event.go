// Package engine implements the plugin host core: typed ports and event
// buffers, the fixed-slot plugin table with post-action serialization, the
// rack and patchbay processors, and the driver backend contract.
package engine

import (
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
)

// EventType tags an Event. The zero value is the Null sentinel, so a
// zero-initialized buffer is a valid empty buffer.
type EventType uint8

const (
	EventTypeNull EventType = iota
	EventTypeControl
	EventTypeMidi
)

// ControlEventType tags a control event payload.
type ControlEventType uint8

const (
	ControlEventTypeNull ControlEventType = iota
	ControlEventTypeParameter
	ControlEventTypeMidiBank
	ControlEventTypeMidiProgram
	ControlEventTypeAllSoundOff
	ControlEventTypeAllNotesOff
)

// ControlEvent is a parameter change, bank/program select, or channel-wide
// control. Value is normalized to [0, 1].
type ControlEvent struct {
	Type  ControlEventType
	Param uint16
	Value float64
}

// MidiEvent is a short MIDI message. Sysex does not travel on this path.
type MidiEvent struct {
	Port uint8
	Size uint8
	Data [3]byte
}

// Event is the tagged union stored in event buffers. Events sit in
// insertion order; the first EventTypeNull entry marks the end.
type Event struct {
	Type    EventType
	Time    uint32
	Channel uint8
	Ctrl    ControlEvent
	Midi    MidiEvent
}

// Clear resets the event to the Null sentinel.
func (e *Event) Clear() {
	*e = Event{}
}

// fallbackEvent is returned by out-of-bounds reads so RT readers never
// branch into allocation or error paths.
var fallbackEvent Event

// isBankSelect reports whether a controller number is one of the two
// bank-select CCs, which must never be carried as Parameter events.
func isBankSelect(param uint16) bool {
	return param == uint16(midi.BankSelectMSB) || param == uint16(midi.BankSelectLSB)
}

// zeroEvents resets a whole buffer to Null sentinels.
func zeroEvents(events []Event) {
	for i := range events {
		events[i] = Event{}
	}
}

// eventCount scans from index 0 and returns the index of the first Null.
func eventCount(events []Event) uint32 {
	for i := range events {
		if events[i].Type == EventTypeNull {
			return uint32(i)
		}
	}
	return uint32(len(events))
}

// writeControl appends a control event at the first free slot. Full buffers
// drop the event with a warning; the RT path never grows storage.
func writeControl(events []Event, time uint32, channel uint8, ctype ControlEventType, param uint16, value float64) {
	for i := range events {
		if events[i].Type != EventTypeNull {
			continue
		}
		events[i] = Event{
			Type:    EventTypeControl,
			Time:    time,
			Channel: channel,
			Ctrl: ControlEvent{
				Type:  ctype,
				Param: param,
				Value: value,
			},
		}
		return
	}
	logrus.Warn("event buffer full, control event dropped")
}

// writeMidi appends a short MIDI event at the first free slot.
func writeMidi(events []Event, time uint32, channel, port uint8, data []byte) {
	for i := range events {
		if events[i].Type != EventTypeNull {
			continue
		}
		ev := Event{
			Type:    EventTypeMidi,
			Time:    time,
			Channel: channel,
		}
		ev.Midi.Port = port
		ev.Midi.Size = uint8(len(data))
		copy(ev.Midi.Data[:], data)
		events[i] = ev
		return
	}
	logrus.Warn("event buffer full, midi event dropped")
}
