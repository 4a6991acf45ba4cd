package merge

import (
	"errors"
	"math"
	"testing"

	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus/corpustest"
	"github.com/leandrodaf/improv/internal/history"
	"github.com/leandrodaf/improv/internal/transform"
)

func peak(time, score float64, tr transform.Transform) activity.Peak {
	return activity.Peak{Time: time, Score: score, Transform: tr}
}

func TestDistance_FusesCloseNeighbours(t *testing.T) {
	id := transform.Identity{}
	up := transform.Transpose{Semitones: 1}
	in := []activity.Peak{
		peak(1.0, 1, id),
		peak(1.05, 1, id),
		peak(1.12, 2, id),
		peak(1.02, 1, up),
		peak(3.0, 1, id),
	}
	snapshot := append([]activity.Peak(nil), in...)

	out := NewDistance(0.1).Merge(in, 0, nil, nil)

	for i := range in {
		if in[i] != snapshot[i] {
			t.Fatal("Merge modified its input")
		}
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 peaks, got %+v", out)
	}

	var fused *activity.Peak
	for i := range out {
		if transform.Equal(out[i].Transform, id) && out[i].Time < 2 {
			fused = &out[i]
		}
	}
	if fused == nil {
		t.Fatalf("missing fused identity peak in %+v", out)
	}
	// 1.0 and 1.05 fuse at 1.025 which is then within 0.1 of 1.12.
	wantTime := (1.025*2 + 1.12*2) / 4
	if fused.Score != 4 || math.Abs(fused.Time-wantTime) > 1e-9 {
		t.Errorf("fused peak: got %+v, want time %v score 4", *fused, wantTime)
	}
}

func TestDistance_Idempotent(t *testing.T) {
	id := transform.Identity{}
	merged := []activity.Peak{peak(0.5, 1, id), peak(1.0, 2, id), peak(2.5, 0.3, id)}
	d := NewDistance(0.1)

	once := d.Merge(merged, 0, nil, nil)
	twice := d.Merge(once, 0, nil, nil)
	if len(twice) != len(merged) {
		t.Fatalf("expected %d peaks, got %d", len(merged), len(twice))
	}
	for i := range merged {
		if twice[i] != merged[i] {
			t.Errorf("peak %d changed: %+v -> %+v", i, merged[i], twice[i])
		}
	}
}

func TestPhase(t *testing.T) {
	id := transform.Identity{}
	out := NewPhase(1).Merge([]activity.Peak{peak(2, 1, id), peak(2.5, 1, id)}, 4, nil, nil)
	if math.Abs(out[0].Score-1) > 1e-12 {
		t.Errorf("in-phase peak should keep its score, got %v", out[0].Score)
	}
	if want := math.Exp(-2); math.Abs(out[1].Score-want) > 1e-12 {
		t.Errorf("anti-phase peak: got %v, want %v", out[1].Score, want)
	}
}

func TestNextState(t *testing.T) {
	id := transform.Identity{}
	peaks := []activity.Peak{peak(3.2, 1, id), peak(5, 1, id)}
	m := NewNextState(0, 0)

	empty := history.New(4)
	out := m.Merge(peaks, 10, empty, nil)
	if out[0].Score != 1 || out[1].Score != 1 {
		t.Errorf("empty history should be a no-op, got %+v", out)
	}

	h := history.New(4)
	h.Append(history.Entry{Event: corpustest.Event(2, 2, 1, 60), TriggerTime: 9, Transform: id})
	out = m.Merge(peaks, 10, h, nil)
	if out[0].Score != DefaultFactor {
		t.Errorf("continuation peak should be boosted, got %v", out[0].Score)
	}
	if out[1].Score != 1 {
		t.Errorf("distant peak should be untouched, got %v", out[1].Score)
	}
	if peaks[0].Score != 1 {
		t.Error("Merge modified its input")
	}
}

func TestApply_SkipsDisabled(t *testing.T) {
	id := transform.Identity{}
	pipeline := DefaultPipeline()
	pipeline[1].SetEnabled(false)

	out := Apply(pipeline, []activity.Peak{peak(2.5, 1, id)}, 4, history.New(1), nil)
	if len(out) != 1 || out[0].Score != 1 {
		t.Errorf("disabled phase action should not attenuate, got %+v", out)
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList([]string{"phase", "Distance"})
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if got[0].Name() != "phase" || got[1].Name() != "distance" {
		t.Errorf("unexpected order %s, %s", got[0].Name(), got[1].Name())
	}
	if _, err := ParseList([]string{"distance", "harmonic"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}
