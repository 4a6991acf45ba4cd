package contracts

import "time"

// MIDICommand represents the types of MIDI commands for event filtering.
type MIDICommand byte

const (
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
)

// MIDIEventFilter allows users to specify which MIDI commands to capture.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to filter.
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// Options defines the configuration shared by the engine and the live MIDI input client.
type Options struct {
	Logger          Logger           // Logger for logging events and errors.
	LogLevel        LogLevel         // Level of logging to use.
	LogFilePath     string           // File path for logging if file logging is enabled.
	MIDIEventFilter *MIDIEventFilter // Optional filter for MIDI events to capture.
	CoreMIDIConfig  *CoreMIDIConfig  // Configuration specific to CoreMIDI.

	Tempo          float64       // Initial scheduler tempo in beats per minute.
	TickInterval   time.Duration // Scheduler tick period.
	TriggerPretime float64       // Beats a trigger is processed ahead of its target time.
	Seed           uint64        // Seed for tie-breaking randomness; 0 picks a random seed.
	Clock          func() time.Time
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithLogFile routes log output to a file.
func WithLogFile(path string) Option {
	return func(opts *Options) {
		opts.LogFilePath = path
	}
}

// WithMIDIEventFilter sets the MIDI event filter for the live input client.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *Options) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the live input client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *Options) {
		opts.CoreMIDIConfig = &config
	}
}

// WithTempo sets the initial scheduler tempo.
func WithTempo(bpm float64) Option {
	return func(opts *Options) {
		opts.Tempo = bpm
	}
}

// WithTickInterval sets the scheduler tick period.
func WithTickInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.TickInterval = d
	}
}

// WithTriggerPretime sets how many beats ahead of its target a trigger is processed.
func WithTriggerPretime(beats float64) Option {
	return func(opts *Options) {
		opts.TriggerPretime = beats
	}
}

// WithSeed makes peak tie-breaking reproducible.
func WithSeed(seed uint64) Option {
	return func(opts *Options) {
		opts.Seed = seed
	}
}

// WithClock replaces the wall clock driving the scheduler.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}
