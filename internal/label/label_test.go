package label

import (
	"errors"
	"strings"
	"testing"

	"github.com/leandrodaf/improv/internal/logger"
)

func TestMelodicClassifier(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		want    int
		wantErr bool
	}{
		{"middle c", FromPitch(60), 60, false},
		{"silence", FromPitch(MaxMelodic), MaxMelodic, false},
		{"lowest", FromPitch(0), 0, false},
		{"too high", FromPitch(141), 0, true},
		{"negative", FromPitch(-1), 0, true},
		{"no pitch", FromChroma(make([]float64, 12)), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MelodicClassifier{}.Classify(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != (Label{Kind: Melodic, Value: tt.want}) {
				t.Errorf("got %v, want melodic(%d)", got, tt.want)
			}
		})
	}
}

func TestPitchClassClassifier_FoldsOctaves(t *testing.T) {
	for _, pitch := range []int{2, 14, 62, 134} {
		got, err := PitchClassClassifier{}.Classify(FromPitch(pitch))
		if err != nil {
			t.Fatalf("pitch %d: %v", pitch, err)
		}
		if got.Value != 2 || got.Kind != PitchClass {
			t.Errorf("pitch %d: got %v, want pitchclass(2)", pitch, got)
		}
	}
}

func TestHarmonicClassifier_BuiltinTable(t *testing.T) {
	c := NewHarmonicClassifier(Builtin())

	// C major triad, non-normalized magnitudes
	cMajor := []float64{4, 0, 0, 0, 4, 0, 0, 4, 0, 0, 0, 0}
	got, err := c.Classify(FromChroma(cMajor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// class 0 is silence, 1..12 single pitch classes, 13..24 major triads
	if got.Value != 13 {
		t.Errorf("C major: got class %d, want 13", got.Value)
	}

	silence, err := c.Classify(FromChroma(make([]float64, 12)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if silence.Value != 0 {
		t.Errorf("zero chroma: got class %d, want 0", silence.Value)
	}

	fromPitch, err := c.Classify(FromPitch(67))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fromPitch.Value != 1+7 {
		t.Errorf("pitch 67: got class %d, want %d", fromPitch.Value, 8)
	}
}

func TestHarmonicClassifier_RejectsWrongSize(t *testing.T) {
	_, err := NewHarmonicClassifier(Builtin()).Classify(FromChroma([]float64{1, 2, 3}))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHarmonicClassifier_TieKeepsFirstRow(t *testing.T) {
	table, err := LoadTable(strings.NewReader(
		"1,0,0,0,0,0,0,0,0,0,0,0,7\n" +
			"0,0,1,0,0,0,0,0,0,0,0,0,9\n"))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	// equidistant from both rows
	got, err := NewHarmonicClassifier(table).Classify(FromChroma([]float64{1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 7 {
		t.Errorf("tie: got class %d, want first row's class 7", got.Value)
	}
}

func TestLoadTable_Errors(t *testing.T) {
	if _, err := LoadTable(strings.NewReader("")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty table: expected ErrInvalidInput, got %v", err)
	}
	if _, err := LoadTable(strings.NewReader("1,2,3\n")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short row: expected ErrInvalidInput, got %v", err)
	}
	if _, err := LoadTable(strings.NewReader("a,0,0,0,0,0,0,0,0,0,0,0\n")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad float: expected ErrInvalidInput, got %v", err)
	}
}

func TestParseKindOrDefault(t *testing.T) {
	log := logger.NewNopLogger()
	if got := ParseKindOrDefault("harmonic", log); got != Harmonic {
		t.Errorf("got %q, want harmonic", got)
	}
	if got := ParseKindOrDefault("timbre", log); got != DefaultKind {
		t.Errorf("got %q, want default %q", got, DefaultKind)
	}
	if _, err := ParseKind("timbre"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

type fakeSource struct {
	pitch  int
	chroma []float64
}

func (f fakeSource) FundamentalPitch() int   { return f.pitch }
func (f fakeSource) ChromaVector() []float64 { return f.chroma }

func TestClassifyAll(t *testing.T) {
	labels, err := ClassifyAll(fakeSource{pitch: 64, chroma: []float64{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != len(Kinds()) {
		t.Fatalf("expected %d labels, got %d", len(Kinds()), len(labels))
	}
	if labels[Melodic].Value != 64 || labels[PitchClass].Value != 4 || labels[Harmonic].Value != 5 {
		t.Errorf("unexpected labels %v", labels)
	}

	if _, err := ClassifyAll(fakeSource{pitch: 200, chroma: make([]float64, 12)}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for out-of-range pitch, got %v", err)
	}
}
