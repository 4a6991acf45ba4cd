// Package midimsg decodes raw channel messages for the live input clients.
package midimsg

import (
	"errors"
	"time"

	"github.com/leandrodaf/improv/sdk/contracts"
)

var (
	// ErrIncompleteMessage is returned for messages shorter than a note message.
	ErrIncompleteMessage = errors.New("incomplete MIDI message")
	// ErrUnavailable is returned by the placeholder clients of other platforms.
	ErrUnavailable = errors.New("live MIDI input is not available on this platform")
)

// DefaultClientName names the input client when none is configured.
const DefaultClientName = "improv"

// ClientName returns the configured client name or DefaultClientName.
func ClientName(cfg *contracts.CoreMIDIConfig) string {
	if cfg == nil || cfg.ClientName == "" {
		return DefaultClientName
	}
	return cfg.ClientName
}

// Decode splits the status byte of a three byte channel message into command and channel.
func Decode(data []byte, at time.Time) (contracts.MIDI, error) {
	if len(data) < 3 {
		return contracts.MIDI{}, ErrIncompleteMessage
	}
	return contracts.MIDI{
		Timestamp: uint64(at.UTC().UnixNano()),
		Command:   data[0] & 0xF0,
		Channel:   data[0] & 0x0F,
		Note:      data[1],
		Velocity:  data[2],
	}, nil
}

// Allowed reports whether ev passes filter. A nil filter allows everything.
func Allowed(ev contracts.MIDI, filter *contracts.MIDIEventFilter) bool {
	if filter == nil {
		return true
	}
	for _, c := range filter.Commands {
		if ev.Command == byte(c) {
			return true
		}
	}
	return false
}

// Deliver sends ev without blocking and reports whether it was accepted.
func Deliver(ch chan contracts.MIDI, ev contracts.MIDI, log contracts.Logger) bool {
	select {
	case ch <- ev:
		return true
	default:
		log.Warn("Event buffer full; dropping MIDI event",
			log.Field().Uint8("note", ev.Note),
			log.Field().Uint8("channel", ev.Channel))
		return false
	}
}
