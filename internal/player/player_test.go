package player

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/corpus/corpustest"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/logger"
	"github.com/leandrodaf/improv/internal/merge"
	"github.com/leandrodaf/improv/internal/transform"
)

func melodic(v int) label.Label { return label.Label{Kind: label.Melodic, Value: v} }

func newPlayer(t *testing.T, pitches ...int) *Player {
	t.Helper()
	p := New("p1", logger.NewNopLogger(), WithRand(rand.New(rand.NewPCG(1, 1))))
	if err := p.CreateStreamView("melody", 1, nil); err != nil {
		t.Fatalf("CreateStreamView: %v", err)
	}
	if err := p.CreateAtom("melody:pitch", AtomConfig{Kind: label.Melodic}); err != nil {
		t.Fatalf("CreateAtom: %v", err)
	}
	if len(pitches) > 0 {
		if err := p.SetCorpus(corpustest.Melody(t, pitches...)); err != nil {
			t.Fatalf("SetCorpus: %v", err)
		}
	}
	return p
}

func TestPlayer_EndToEnd(t *testing.T) {
	p := newPlayer(t, 72, 74, 76)

	for i, step := range []struct {
		pitch int
		time  float64
		peaks int
	}{
		{72, 0.0, 0},
		{74, 0.1, 0},
		{76, 0.2, 1},
	} {
		if err := p.Influence("melody:pitch", melodic(step.pitch), step.time); err != nil {
			t.Fatalf("influence %d: %v", i, err)
		}
		if got := len(p.Atoms()[0].Peaks()); got != step.peaks {
			t.Fatalf("after influence %d: expected %d peaks, got %d", i, step.peaks, got)
		}
	}
	if pk := p.Atoms()[0].Peaks()[0]; pk.Time != 2 {
		t.Fatalf("peak should point at state 2, got time %v", pk.Time)
	}

	ev, err := p.NewEvent(0.5)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.StateIndex != 2 || ev.Pitch != 76 {
		t.Errorf("expected state 2, got %d (pitch %d)", ev.StateIndex, ev.Pitch)
	}
	if last, _ := p.History().Latest(); last.Event != p.Corpus().EventAt(2) || last.TriggerTime != 0.5 {
		t.Errorf("history not updated: %+v", last)
	}
}

func TestPlayer_NewEventWithoutCorpus(t *testing.T) {
	p := newPlayer(t)
	if _, err := p.NewEvent(0); !errors.Is(err, ErrInvalidCorpus) {
		t.Errorf("expected ErrInvalidCorpus, got %v", err)
	}
}

func TestPlayer_ColdStartFallsBackToDefault(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	for i, want := range []int{0, 1, 2, 0} {
		ev, err := p.NewEvent(float64(i))
		if err != nil {
			t.Fatalf("NewEvent: %v", err)
		}
		if ev.StateIndex != want {
			t.Errorf("event %d: got state %d, want %d", i, ev.StateIndex, want)
		}
	}
}

func TestPlayer_TransformAppliedToCopy(t *testing.T) {
	p := New("p1", logger.NewNopLogger(), WithMergeActions())
	if err := p.CreateStreamView("sv", 1, nil); err != nil {
		t.Fatal(err)
	}
	up := transform.Transpose{Semitones: 2}
	if err := p.CreateAtom("sv:a", AtomConfig{Kind: label.Melodic, NGramSize: 2, Transforms: []transform.Transform{up}}); err != nil {
		t.Fatal(err)
	}
	if err := p.SetCorpus(corpustest.Melody(t, 60, 62, 64)); err != nil {
		t.Fatal(err)
	}

	_ = p.Influence("", melodic(62), 0)
	_ = p.Influence("", melodic(64), 0)
	ev, err := p.NewEvent(0)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.StateIndex != 1 || ev.Pitch != 64 || ev.Transposition != 2 {
		t.Errorf("expected state 1 transposed to 64, got state %d pitch %d", ev.StateIndex, ev.Pitch)
	}
	if p.Corpus().EventAt(1).Pitch != 62 {
		t.Error("corpus event was modified")
	}
}

func TestPlayer_SelfInfluence(t *testing.T) {
	p := New("p1", logger.NewNopLogger(), WithMergeActions())
	if err := p.CreateStreamView("sv", 1, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateAtom("sv:self", AtomConfig{Kind: label.Melodic, NGramSize: 1, SelfInfluenced: true}); err != nil {
		t.Fatal(err)
	}
	if err := p.SetCorpus(corpustest.Melody(t, 60, 62, 64)); err != nil {
		t.Fatal(err)
	}

	if _, err := p.NewEvent(0); err != nil {
		t.Fatal(err)
	}
	peaks := p.Atoms()[0].Peaks()
	if len(peaks) != 1 || peaks[0].Time != 0 {
		t.Fatalf("output should influence the atom after selection, got %+v", peaks)
	}
}

func TestPlayer_Jump(t *testing.T) {
	p := New("p1", logger.NewNopLogger(), WithMergeActions())
	if err := p.CreateStreamView("sv", 1, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateAtom("sv:a", AtomConfig{Kind: label.Melodic, NGramSize: 1}); err != nil {
		t.Fatal(err)
	}
	if err := p.SetCorpus(corpustest.Melody(t, 60, 62, 60, 62)); err != nil {
		t.Fatal(err)
	}

	if ev, _ := p.NewEvent(0); ev.StateIndex != 0 {
		t.Fatalf("cold start should pick state 0, got %d", ev.StateIndex)
	}
	_ = p.Influence("sv:a", melodic(62), 0)
	p.Jump()
	ev, err := p.NewEvent(0)
	if err != nil {
		t.Fatal(err)
	}
	if ev.StateIndex != 3 {
		t.Errorf("jump should skip continuation state 1, got %d", ev.StateIndex)
	}
}

func TestPlayer_Goto(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	if err := p.Goto(5); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if err := p.Goto(2); err != nil {
		t.Fatal(err)
	}
	if ev, _ := p.NewEvent(0); ev.StateIndex != 2 {
		t.Errorf("expected state 2, got %d", ev.StateIndex)
	}
}

func TestPlayer_GotoClearedByCorpusSwap(t *testing.T) {
	p := newPlayer(t, 60, 62, 64, 65, 67, 69)
	if err := p.Goto(5); err != nil {
		t.Fatal(err)
	}
	p.Jump()
	if err := p.SetCorpus(corpustest.Melody(t, 60, 62, 64)); err != nil {
		t.Fatal(err)
	}

	ev, err := p.NewEvent(0)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.StateIndex != 0 {
		t.Errorf("expected a cold start at state 0, got %d", ev.StateIndex)
	}
	if p.jumpPending || p.gotoState != -1 {
		t.Errorf("corpus swap left jump %v goto %d pending", p.jumpPending, p.gotoState)
	}
}

func TestPlayer_StaleGotoIsDropped(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	p.gotoState = 7
	ev, err := p.NewEvent(0)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.StateIndex != 0 || p.gotoState != -1 {
		t.Errorf("expected normal selection, got state %d goto %d", ev.StateIndex, p.gotoState)
	}
}

func TestPlayer_Paths(t *testing.T) {
	p := newPlayer(t)
	cases := []struct {
		name string
		err  error
		fn   func() error
	}{
		{"atom under player", ErrInvalidPath, func() error { return p.CreateAtom("lonely", AtomConfig{}) }},
		{"empty segment", ErrInvalidPath, func() error { return p.CreateStreamView("melody::x", 1, nil) }},
		{"missing parent", ErrPathNotFound, func() error { return p.CreateAtom("harmony:chords", AtomConfig{}) }},
		{"duplicate atom", ErrDuplicateKey, func() error { return p.CreateAtom("melody:pitch", AtomConfig{}) }},
		{"duplicate view", ErrDuplicateKey, func() error { return p.CreateStreamView("melody", 1, nil) }},
		{"below an atom", ErrInvalidPath, func() error { return p.CreateAtom("melody:pitch:x", AtomConfig{}) }},
		{"influence unknown", ErrPathNotFound, func() error { return p.Influence("melody:nope", melodic(60), 0) }},
		{"wrong kind", ErrLabelKind, func() error {
			return p.Influence("melody:pitch", label.Label{Kind: label.Harmonic, Value: 1}, 0)
		}},
		{"weight unknown", ErrPathNotFound, func() error { return p.SetWeight("drums", 2) }},
		{"delete unknown", ErrPathNotFound, func() error { return p.DeleteAtom("melody:nope") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}

	if err := p.CreateStreamView("melody:inner", 2, []merge.Action{merge.NewDistance(0.1)}); err != nil {
		t.Fatalf("nested streamview: %v", err)
	}
	if err := p.CreateAtom("melody:inner:pc", AtomConfig{Kind: label.PitchClass}); err != nil {
		t.Fatalf("nested atom: %v", err)
	}
	if len(p.Atoms()) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(p.Atoms()))
	}
	if err := p.DeleteAtom("melody:inner"); err != nil {
		t.Fatalf("DeleteAtom: %v", err)
	}
	if len(p.Atoms()) != 1 {
		t.Errorf("expected 1 atom after delete, got %d", len(p.Atoms()))
	}
}

func TestStreamView_WeightNormalization(t *testing.T) {
	p := New("p1", logger.NewNopLogger(), WithMergeActions())
	_ = p.CreateStreamView("sv", 1, nil)
	_ = p.CreateAtom("sv:a", AtomConfig{Kind: label.Melodic, NGramSize: 1, Weight: 3})
	_ = p.CreateAtom("sv:b", AtomConfig{Kind: label.Melodic, NGramSize: 1, Weight: 1})
	_ = p.CreateAtom("sv:off", AtomConfig{Kind: label.Melodic, NGramSize: 1, Weight: 100})
	if err := p.SetCorpus(corpustest.Melody(t, 60, 62)); err != nil {
		t.Fatal(err)
	}
	if err := p.SetEnabled("sv:off", false); err != nil {
		t.Fatal(err)
	}

	_ = p.Influence("sv:a", melodic(60), 0)
	_ = p.Influence("sv:b", melodic(62), 0)
	_ = p.Influence("sv:off", melodic(62), 0)

	peaks := p.Peaks(0)
	if len(peaks) != 2 {
		t.Fatalf("disabled atom must not contribute, got %+v", peaks)
	}
	if peaks[0].Score != 0.75 || peaks[1].Score != 0.25 {
		t.Errorf("expected scores 0.75 and 0.25, got %v and %v", peaks[0].Score, peaks[1].Score)
	}
}

func TestPlayer_InfluenceFansOutByKind(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	if err := p.CreateAtom("melody:pc", AtomConfig{Kind: label.PitchClass, NGramSize: 1}); err != nil {
		t.Fatal(err)
	}
	if err := p.Influence("", label.Label{Kind: label.PitchClass, Value: 2}, 0); err != nil {
		t.Fatal(err)
	}
	atoms := p.Atoms()
	if len(atoms[1].Peaks()) != 1 {
		t.Error("pitch class atom should have matched")
	}

	if err := p.InfluenceSource("melody", corpustest.Event(0, 0, 1, 64), 0.1); err != nil {
		t.Fatal(err)
	}
	if len(atoms[1].Peaks()) != 2 {
		t.Error("source influence should reach the pitch class atom")
	}
}

func TestPlayer_FailedCorpusLoadKeepsPrevious(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	before := p.Corpus()
	if err := p.ReadCorpus(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error")
	}
	if p.Corpus() != before {
		t.Error("failed load replaced the corpus")
	}

	if err := p.ReadCorpus(filepath.Join("..", "corpus", "testdata", "three_states.json")); err != nil {
		t.Fatalf("ReadCorpus: %v", err)
	}
	if p.Corpus().Len() != 3 || p.Corpus().ContentType() != corpus.MIDI {
		t.Errorf("unexpected corpus %v", p.Corpus())
	}
}

func TestPlayer_FailedCorpusSwapKeepsAtoms(t *testing.T) {
	p := newPlayer(t, 60, 62, 64, 60, 62, 64)
	if err := p.CreateAtom("melody:class", AtomConfig{Kind: label.PitchClass}); err != nil {
		t.Fatal(err)
	}
	before := p.Corpus()
	for i, pitch := range []int{60, 62, 64} {
		if err := p.Influence("melody:pitch", melodic(pitch), float64(i)*0.1); err != nil {
			t.Fatal(err)
		}
	}
	peaks := len(p.Atoms()[0].Peaks())
	if peaks == 0 {
		t.Fatal("expected peaks before the swap")
	}

	ev := corpustest.Event(0, 0, 1, 60)
	ev.Labels = map[label.Kind]label.Label{label.Melodic: melodic(60)}
	partial, err := corpus.New("partial", corpus.MIDI, []*corpus.Event{ev})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetCorpus(partial); !errors.Is(err, corpus.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}

	if p.Corpus() != before {
		t.Error("failed swap replaced the corpus")
	}
	if got := len(p.Atoms()[0].Peaks()); got != peaks {
		t.Errorf("failed swap touched peaks: %d before, %d after", peaks, got)
	}
	if err := p.Influence("melody:pitch", melodic(60), 0.3); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Atoms()[0].Peaks()); got <= peaks {
		t.Errorf("index over the previous corpus was lost: %d peaks", got)
	}
}

func TestPlayer_AddTransformsAndReset(t *testing.T) {
	p := newPlayer(t, 60, 62, 64)
	up := transform.Transpose{Semitones: 1}
	if err := p.AddTransforms("melody", []transform.Transform{up, transform.Identity{}}); err != nil {
		t.Fatal(err)
	}
	if got := p.Atoms()[0].Transforms(); len(got) != 2 {
		t.Errorf("expected identity and transpose, got %v", got)
	}

	_, _ = p.NewEvent(0)
	p.Reset()
	if p.History().Len() != 0 {
		t.Error("Reset should clear history")
	}
}
