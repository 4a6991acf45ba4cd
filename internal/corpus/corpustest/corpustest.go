// Package corpustest builds small in-memory corpora for tests.
package corpustest

import (
	"testing"

	"github.com/leandrodaf/improv/internal/corpus"
)

// Melody returns a MIDI corpus with one single-note event per pitch. Event i starts at
// beat i and lasts one beat.
func Melody(t testing.TB, pitches ...int) *corpus.Corpus {
	t.Helper()
	events := make([]*corpus.Event, len(pitches))
	for i, p := range pitches {
		events[i] = Event(i, float64(i), 1, p)
	}
	c, err := corpus.New("melody", corpus.MIDI, events)
	if err != nil {
		t.Fatalf("corpustest: %v", err)
	}
	return c
}

// Event returns an unclassified single-note event.
func Event(index int, onset, duration float64, pitch int) *corpus.Event {
	chroma := make([]float64, 12)
	chroma[pitch%12] = 1
	return &corpus.Event{
		StateIndex: index,
		Tempo:      120,
		Onset:      onset,
		Duration:   duration,
		Absolute:   corpus.Span{Onset: onset * 500, Duration: duration * 500},
		Chroma:     chroma,
		Pitch:      pitch,
		Notes:      []corpus.Note{{Pitch: pitch, Velocity: 100, Channel: 1, Onset: 0, Duration: duration}},
	}
}
