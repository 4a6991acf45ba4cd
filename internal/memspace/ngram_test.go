package memspace

import (
	"errors"
	"testing"

	"github.com/leandrodaf/improv/internal/corpus/corpustest"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/logger"
	"github.com/leandrodaf/improv/internal/transform"
)

func melodic(v int) label.Label { return label.Label{Kind: label.Melodic, Value: v} }

func TestNGram_Completeness(t *testing.T) {
	pitches := []int{60, 62, 64, 60, 62, 67}
	c := corpustest.Melody(t, pitches...)
	g := NewNGram(label.Melodic, logger.NewNopLogger())
	if err := g.Read(c); err != nil {
		t.Fatalf("Read: %v", err)
	}

	n := g.Size()
	for i := n; i <= len(pitches); i++ {
		window := make([]label.Label, 0, n)
		for _, p := range pitches[i-n : i] {
			window = append(window, melodic(p))
		}
		found := false
		for _, ev := range g.Lookup(window) {
			if ev.StateIndex == i-1 {
				found = true
			}
		}
		if !found {
			t.Errorf("window ending at %d does not map to event %d", i-1, i-1)
		}
	}
	if len(g.Keys()) != len(pitches)-n+1 {
		t.Errorf("expected %d keys, got %v", len(pitches)-n+1, g.Keys())
	}
}

func TestNGram_InfluenceColdStartThenMatch(t *testing.T) {
	c := corpustest.Melody(t, 60, 62, 64, 60, 62, 67)
	g := NewNGram(label.Melodic, logger.NewNopLogger())
	if err := g.Read(c); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got := g.Influence(melodic(60), 0); len(got) != 0 {
		t.Fatalf("expected no match after one label, got %v", got)
	}
	if got := g.Influence(melodic(62), 0.1); len(got) != 0 {
		t.Fatalf("expected no match after two labels, got %v", got)
	}
	got := g.Influence(melodic(64), 0.2)
	if len(got) != 1 || got[0].Event.StateIndex != 2 || got[0].Time != 0.2 {
		t.Fatalf("expected a single match at state 2, got %+v", got)
	}
	got = g.Influence(melodic(60), 0.3)
	if len(got) != 1 || got[0].Event.StateIndex != 3 {
		t.Fatalf("expected window 62 64 60 to match state 3, got %+v", got)
	}
	if got := g.Influence(melodic(70), 0.4); len(got) != 0 {
		t.Errorf("expected a miss, got %+v", got)
	}

	g.Reset()
	if got := g.Influence(melodic(64), 0.5); len(got) != 0 {
		t.Errorf("expected cold start after reset, got %+v", got)
	}
}

func TestNGram_RepeatedWindowsKeepEveryOccurrence(t *testing.T) {
	c := corpustest.Melody(t, 60, 62, 60, 62, 60)
	g := NewNGram(label.Melodic, logger.NewNopLogger(), WithSize(2))
	if err := g.Read(c); err != nil {
		t.Fatalf("Read: %v", err)
	}
	g.Influence(melodic(60), 0)
	got := g.Influence(melodic(62), 1)
	if len(got) != 2 || got[0].Event.StateIndex != 1 || got[1].Event.StateIndex != 3 {
		t.Fatalf("expected states 1 and 3, got %+v", got)
	}
}

func TestNGram_TransformsAreOred(t *testing.T) {
	c := corpustest.Melody(t, 60, 62, 64, 65, 67)
	up := transform.Transpose{Semitones: 2}
	g := NewNGram(label.Melodic, logger.NewNopLogger(),
		WithTransforms(transform.Identity{}, up, transform.Transpose{Semitones: -140}))
	if err := g.Read(c); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// 62 64 66 is 60 62 64 transposed up and matches nothing untransformed.
	g.Influence(melodic(62), 0)
	g.Influence(melodic(64), 0)
	got := g.Influence(melodic(66), 0)
	if len(got) != 1 || got[0].Event.StateIndex != 2 || !transform.Equal(got[0].Transform, up) {
		t.Fatalf("expected a transposed match at state 2, got %+v", got)
	}

	// 64 65 67 matches as is and, shifted down by 2, as 62 63 65 which is absent.
	g.Influence(melodic(64), 0)
	g.Influence(melodic(65), 0)
	got = g.Influence(melodic(67), 0)
	if len(got) != 1 || got[0].Event.StateIndex != 4 || !transform.Equal(got[0].Transform, transform.Identity{}) {
		t.Fatalf("expected an identity match at state 4, got %+v", got)
	}
}

func TestNGram_InfluenceBeforeRead(t *testing.T) {
	g := NewNGram(label.Melodic, logger.NewNopLogger(), WithSize(1))
	if got := g.Influence(melodic(60), 0); got != nil {
		t.Errorf("expected no matches on an empty index, got %v", got)
	}
	if g.Built() {
		t.Error("index should not be built")
	}
}

func TestNew(t *testing.T) {
	idx, err := New("", label.PitchClass, logger.NewNopLogger())
	if err != nil || idx.Kind() != label.PitchClass {
		t.Fatalf("New default: %v, %v", idx, err)
	}
	if _, err := New("som", label.Melodic, logger.NewNopLogger()); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
