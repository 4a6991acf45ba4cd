package midi

import (
	"time"

	"github.com/leandrodaf/improv/internal/logger"
	"github.com/leandrodaf/improv/internal/midi/midimsg"
	"github.com/leandrodaf/improv/sdk/contracts"
)

const (
	// DefaultTempo is the scheduler tempo in beats per minute.
	DefaultTempo = 120.0
	// DefaultTickInterval is the scheduler tick period.
	DefaultTickInterval = time.Millisecond
)

// ApplyDefaultOptions applies opts and fills in the values they left unset.
// The logger is configured with the resulting level and destination.
func ApplyDefaultOptions(opts ...contracts.Option) contracts.Options {
	options := &contracts.Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: midimsg.DefaultClientName}
	}
	if options.Tempo <= 0 {
		options.Tempo = DefaultTempo
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options
}
