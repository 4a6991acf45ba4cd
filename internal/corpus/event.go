package corpus

import (
	"fmt"

	"github.com/leandrodaf/improv/internal/label"
)

// Note is one note of an event. Onset and Duration are relative to the owning event.
// A negative onset marks a note sounding since a previous state; a zero duration marks
// a note that keeps sounding into the next state.
type Note struct {
	Pitch    int
	Velocity int
	Channel  int
	Onset    float64
	Duration float64
}

// NoteKey identifies a sounding note for held-note bookkeeping.
type NoteKey struct {
	Pitch   int
	Channel int
}

// Key returns the note's identity.
func (n Note) Key() NoteKey {
	return NoteKey{Pitch: n.Pitch, Channel: n.Channel}
}

// Span is an onset/duration pair.
type Span struct {
	Onset    float64
	Duration float64
}

// Event is one segmented state of the corpus.
type Event struct {
	StateIndex int
	Tempo      float64
	Onset      float64 // in the timing selected at load (beats by default)
	Duration   float64
	Absolute   Span // milliseconds into the source recording
	Chroma     []float64
	Pitch      int
	Notes      []Note
	Labels     map[label.Kind]label.Label

	// Transposition accumulates the semitones applied by transforms.
	Transposition int
}

// FundamentalPitch implements label.Source.
func (e *Event) FundamentalPitch() int { return e.Pitch }

// ChromaVector implements label.Source.
func (e *Event) ChromaVector() []float64 { return e.Chroma }

// Label returns the event's label of the given kind.
func (e *Event) Label(kind label.Kind) (label.Label, bool) {
	l, ok := e.Labels[kind]
	return l, ok
}

// MustLabel returns the label of the given kind and panics if the kind was never
// classified, which only happens when a classifier is used without being registered.
func (e *Event) MustLabel(kind label.Kind) label.Label {
	l, ok := e.Labels[kind]
	if !ok {
		panic(fmt.Sprintf("corpus: event %d has no %s label", e.StateIndex, kind))
	}
	return l
}

// Classify (re)computes every registered label.
func (e *Event) Classify() error {
	labels, err := label.ClassifyAll(e)
	if err != nil {
		return fmt.Errorf("state %d: %w", e.StateIndex, err)
	}
	e.Labels = labels
	return nil
}

// End returns onset + duration.
func (e *Event) End() float64 {
	return e.Onset + e.Duration
}

// Clone returns a deep copy that can be transformed without touching the corpus.
func (e *Event) Clone() *Event {
	c := *e
	c.Chroma = append([]float64(nil), e.Chroma...)
	c.Notes = append([]Note(nil), e.Notes...)
	c.Labels = make(map[label.Kind]label.Label, len(e.Labels))
	for k, v := range e.Labels {
		c.Labels[k] = v
	}
	return &c
}

// HeldTo returns the notes that started in a previous state and sound into this one.
func (e *Event) HeldTo() []Note {
	var held []Note
	for _, n := range e.Notes {
		if n.Onset < 0 {
			held = append(held, n)
		}
	}
	return held
}

// HeldFrom returns the notes that keep sounding into the next state.
func (e *Event) HeldFrom() []Note {
	var held []Note
	for _, n := range e.Notes {
		if n.Duration == 0 || n.Onset+n.Duration > e.Duration {
			held = append(held, n)
		}
	}
	return held
}
