package midi

import (
	"github.com/leandrodaf/improv/sdk/contracts"
)

// NewMIDIClient creates a live MIDI input client with the given options.
// Defaults are applied before the client is built.
//
// Returns:
//   - contracts.ClientMIDI: the input client for the current platform.
//   - error: any error raised while creating the client.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options := ApplyDefaultOptions(opts...)
	return NewClient(&options)
}
