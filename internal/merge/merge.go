// Package merge implements the actions that reshape an atom's peaks before selection.
package merge

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/history"
)

// ErrUnknownAction is returned for an unregistered merge action.
var ErrUnknownAction = errors.New("unknown merge action")

// Default parameters.
const (
	DefaultWidth       = 0.1
	DefaultSelectivity = 1.0
	DefaultFactor      = 1.5
	DefaultStateWidth  = 0.5
)

// Action transforms a peak list. Merge returns a new slice and leaves peaks untouched.
type Action interface {
	Name() string
	Merge(peaks []activity.Peak, t float64, h *history.Memory, c *corpus.Corpus) []activity.Peak
	Enabled() bool
	SetEnabled(enabled bool)
}

type toggle struct{ disabled bool }

func (s *toggle) Enabled() bool           { return !s.disabled }
func (s *toggle) SetEnabled(enabled bool) { s.disabled = !enabled }

// Apply runs every enabled action in order.
func Apply(actions []Action, peaks []activity.Peak, t float64, h *history.Memory, c *corpus.Corpus) []activity.Peak {
	for _, a := range actions {
		if a.Enabled() {
			peaks = a.Merge(peaks, t, h, c)
		}
	}
	return peaks
}

// Distance fuses peaks of the same transform that lie closer than Width.
type Distance struct {
	toggle
	Width float64
}

func NewDistance(width float64) *Distance {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Distance{Width: width}
}

func (*Distance) Name() string { return "distance" }

// Merge sorts peaks by transform and time and sweeps left to right. A fused peak takes the
// score-weighted mean time and the summed score, and is compared again with the next peak.
func (d *Distance) Merge(peaks []activity.Peak, _ float64, _ *history.Memory, _ *corpus.Corpus) []activity.Peak {
	if len(peaks) < 2 {
		return append([]activity.Peak(nil), peaks...)
	}
	sorted := append([]activity.Peak(nil), peaks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := sorted[i].Transform.Hash(), sorted[j].Transform.Hash()
		if hi != hj {
			return hi < hj
		}
		return sorted[i].Time < sorted[j].Time
	})

	out := make([]activity.Peak, 0, len(sorted))
	cur := sorted[0]
	for _, p := range sorted[1:] {
		if p.Transform.Hash() == cur.Transform.Hash() && p.Time-cur.Time < d.Width {
			cur = fuse(cur, p)
			continue
		}
		out = append(out, cur)
		cur = p
	}
	return append(out, cur)
}

func fuse(a, b activity.Peak) activity.Peak {
	total := a.Score + b.Score
	t := (a.Time + b.Time) / 2
	if total != 0 {
		t = (a.Time*a.Score + b.Time*b.Score) / total
	}
	return activity.Peak{
		Time:       t,
		Score:      total,
		Transform:  a.Transform,
		LastUpdate: math.Max(a.LastUpdate, b.LastUpdate),
	}
}

// Phase attenuates peaks that are out of phase with the current beat.
type Phase struct {
	toggle
	Selectivity float64
}

func NewPhase(selectivity float64) *Phase {
	return &Phase{Selectivity: selectivity}
}

func (*Phase) Name() string { return "phase" }

func (m *Phase) Merge(peaks []activity.Peak, t float64, _ *history.Memory, _ *corpus.Corpus) []activity.Peak {
	out := make([]activity.Peak, len(peaks))
	for i, p := range peaks {
		p.Score *= math.Exp(m.Selectivity * (math.Cos(2*math.Pi*(t-p.Time)) - 1))
		out[i] = p
	}
	return out
}

// NextState boosts peaks near the continuation of the last produced event.
type NextState struct {
	toggle
	Factor float64
	Width  float64
}

func NewNextState(factor, width float64) *NextState {
	if factor <= 0 {
		factor = DefaultFactor
	}
	if width <= 0 {
		width = DefaultStateWidth
	}
	return &NextState{Factor: factor, Width: width}
}

func (*NextState) Name() string { return "nextstate" }

func (m *NextState) Merge(peaks []activity.Peak, t float64, h *history.Memory, _ *corpus.Corpus) []activity.Peak {
	out := append([]activity.Peak(nil), peaks...)
	last, ok := h.Latest()
	if !ok {
		return out
	}
	next := last.Event.Onset + t - last.TriggerTime
	for i := range out {
		if math.Abs(out[i].Time-next) < m.Width {
			out[i].Score *= m.Factor
		}
	}
	return out
}

// actions maps merge action keys to constructors with default parameters.
var actions = map[string]func() Action{
	"distance":  func() Action { return NewDistance(DefaultWidth) },
	"phase":     func() Action { return NewPhase(DefaultSelectivity) },
	"nextstate": func() Action { return NewNextState(DefaultFactor, DefaultStateWidth) },
}

// Names lists the registered merge actions.
func Names() []string {
	out := make([]string, 0, len(actions))
	for k := range actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the action registered under name.
func New(name string) (Action, error) {
	ctor, ok := actions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return ctor(), nil
}

// ParseList builds actions in the given order.
func ParseList(names []string) ([]Action, error) {
	out := make([]Action, 0, len(names))
	for _, n := range names {
		a, err := New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DefaultPipeline is the distance, phase, nextstate chain with default parameters.
func DefaultPipeline() []Action {
	return []Action{
		NewDistance(DefaultWidth),
		NewPhase(DefaultSelectivity),
		NewNextState(DefaultFactor, DefaultStateWidth),
	}
}
