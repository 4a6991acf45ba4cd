package scheduler

// Event is a primitive queued on the beat clock.
type Event interface {
	Time() float64
}

// TempoEvent changes the scheduler tempo.
type TempoEvent struct {
	At    float64
	Tempo float64
}

// MidiEvent is one note message for a player. Velocity 0 is a note-off.
type MidiEvent struct {
	At       float64
	Player   string
	Pitch    int
	Velocity int
	Channel  int
}

// AudioEvent splices the corpus recording of a player.
type AudioEvent struct {
	At             float64
	Player         string
	OnsetMs        float64
	DurationMs     float64
	TransposeCents int
}

// TriggerEvent asks a player for its next corpus event. Target is the time handed to the
// player, At is when the request is processed.
type TriggerEvent struct {
	At     float64
	Target float64
	Player string
}

func (e TempoEvent) Time() float64   { return e.At }
func (e MidiEvent) Time() float64    { return e.At }
func (e AudioEvent) Time() float64   { return e.At }
func (e TriggerEvent) Time() float64 { return e.At }
