package target

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/improv/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// MIDIOut plays midi primitives on a MIDI output port. Other primitives are ignored.
// Channels are 1-based as in corpus files.
type MIDIOut struct {
	mu     sync.Mutex
	port   drivers.Out
	send   func(midi.Message) error
	closed bool
}

// NewMIDIOut opens port for sending.
func NewMIDIOut(port drivers.Out) (*MIDIOut, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("opening MIDI output %q: %w", port.String(), err)
	}
	return &MIDIOut{port: port, send: send}, nil
}

func (o *MIDIOut) Send(out contracts.Output) error {
	if out.Kind != contracts.MidiOutput {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return o.send(message(out))
}

// Close closes the port.
func (o *MIDIOut) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.port.Close()
}

func message(out contracts.Output) midi.Message {
	ch := channel(out.Channel)
	key := clamp7(out.Pitch)
	if out.Velocity <= 0 {
		return midi.NoteOff(ch, key)
	}
	return midi.NoteOn(ch, key, clamp7(out.Velocity))
}

func channel(c int) uint8 {
	switch {
	case c < 1:
		return 0
	case c > 16:
		return 15
	}
	return uint8(c - 1)
}

func clamp7(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	}
	return uint8(v)
}
