package contracts

// OutputKind identifies the primitive carried by an Output.
type OutputKind string

const (
	// MidiOutput is a single note message; velocity 0 is a note-off.
	MidiOutput OutputKind = "midi"
	// AudioOutput is an audio-splice instruction into the corpus recording.
	AudioOutput OutputKind = "audio"
	// StateOutput announces which corpus state a player just produced.
	StateOutput OutputKind = "state"
)

// Output is one time-stamped primitive emitted by the scheduler.
// Beat is the scheduler beat at which the primitive was dispatched.
type Output struct {
	Kind   OutputKind
	Player string
	Beat   float64

	// midi
	Pitch    int
	Velocity int
	Channel  int

	// audio
	OnsetMs        float64
	DurationMs     float64
	TransposeCents int

	// state
	StateIndex int
	Position   float64
	Length     float64
}

// Target receives the primitives produced for one player.
type Target interface {
	Send(out Output) error
}
