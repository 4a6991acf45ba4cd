package midi

import (
	"runtime"

	"github.com/leandrodaf/improv/internal/midi/mididarwin"
	"github.com/leandrodaf/improv/internal/midi/midiport"
	"github.com/leandrodaf/improv/internal/midi/midiwindows"
	"github.com/leandrodaf/improv/sdk/contracts"
)

// clientInitializers maps OS names to native live input clients.
var clientInitializers = map[string]func(*contracts.Options) (contracts.ClientMIDI, error){
	"darwin":  mididarwin.NewMIDIClient,
	"windows": midiwindows.NewMIDIClient,
}

// NewClient returns the native input client for the current OS. Other systems
// get a client over whatever gomidi driver the application registered.
func NewClient(opts *contracts.Options) (contracts.ClientMIDI, error) {
	return newClientFor(runtime.GOOS, opts)
}

func newClientFor(goos string, opts *contracts.Options) (contracts.ClientMIDI, error) {
	if initializer, exists := clientInitializers[goos]; exists {
		return initializer(opts)
	}
	opts.Logger.Debug("No native MIDI client; using gomidi drivers", opts.Logger.Field().String("os", goos))
	return midiport.NewMIDIClient(opts)
}
