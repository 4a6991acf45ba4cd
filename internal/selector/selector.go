// Package selector turns merged peaks into the next corpus event.
package selector

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/history"
	"github.com/leandrodaf/improv/internal/transform"
)

var (
	// ErrNoTerminalSelector is returned when a chain could fail to decide.
	ErrNoTerminalSelector = errors.New("selector chain has no terminal selector")
	// ErrUnknownSelector is returned for an unregistered selector.
	ErrUnknownSelector = errors.New("unknown selector")
)

// Decision is the corpus event to produce and the transform to apply to it.
type Decision struct {
	Event     *corpus.Event
	Transform transform.Transform
}

// Selector picks an event from peaks. Total selectors always decide on a non-empty corpus.
type Selector interface {
	Name() string
	Decide(peaks []activity.Peak, h *history.Memory, c *corpus.Corpus) (Decision, bool)
	Total() bool
}

// MaxPeak picks the highest peak. Ties at the maximum are broken at random.
type MaxPeak struct {
	rng *rand.Rand
}

// NewMaxPeak uses rng for tie-breaking, or a randomly seeded source when rng is nil.
func NewMaxPeak(rng *rand.Rand) *MaxPeak {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MaxPeak{rng: rng}
}

func (*MaxPeak) Name() string { return "max" }
func (*MaxPeak) Total() bool  { return false }

func (s *MaxPeak) Decide(peaks []activity.Peak, _ *history.Memory, c *corpus.Corpus) (Decision, bool) {
	if len(peaks) == 0 || c == nil || c.Len() == 0 {
		return Decision{}, false
	}
	best := peaks[0].Score
	for _, p := range peaks[1:] {
		if p.Score > best {
			best = p.Score
		}
	}
	var tied []int
	for i, p := range peaks {
		if p.Score == best {
			tied = append(tied, i)
		}
	}
	p := peaks[tied[0]]
	if len(tied) > 1 {
		p = peaks[tied[s.rng.IntN(len(tied))]]
	}
	return Decision{Event: c.EventClosest(p.Time), Transform: p.Transform}, true
}

// Default continues from the last produced event, or starts at the first one.
type Default struct{}

func (Default) Name() string { return "default" }
func (Default) Total() bool  { return true }

func (Default) Decide(_ []activity.Peak, h *history.Memory, c *corpus.Corpus) (Decision, bool) {
	if c == nil || c.Len() == 0 {
		return Decision{}, false
	}
	last, ok := h.Latest()
	if !ok {
		return Decision{Event: c.EventAt(0), Transform: transform.Identity{}}, true
	}
	next := (last.Event.StateIndex + 1) % c.Len()
	tr := last.Transform
	if tr == nil {
		tr = transform.Identity{}
	}
	return Decision{Event: c.EventAt(next), Transform: tr}, true
}

// Chain tries selectors in order until one decides.
type Chain struct {
	selectors []Selector
}

// NewChain fails with ErrNoTerminalSelector unless the last selector is total.
func NewChain(selectors ...Selector) (*Chain, error) {
	if len(selectors) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrNoTerminalSelector)
	}
	if last := selectors[len(selectors)-1]; !last.Total() {
		return nil, fmt.Errorf("%w: %q may not decide", ErrNoTerminalSelector, last.Name())
	}
	return &Chain{selectors: selectors}, nil
}

// DefaultChain is max followed by default.
func DefaultChain(rng *rand.Rand) *Chain {
	return &Chain{selectors: []Selector{NewMaxPeak(rng), Default{}}}
}

// Decide returns the first decision in chain order. It only fails on an empty corpus.
func (ch *Chain) Decide(peaks []activity.Peak, h *history.Memory, c *corpus.Corpus) (Decision, bool) {
	for _, s := range ch.selectors {
		if d, ok := s.Decide(peaks, h, c); ok {
			return d, true
		}
	}
	return Decision{}, false
}

func (ch *Chain) Names() []string {
	out := make([]string, len(ch.selectors))
	for i, s := range ch.selectors {
		out[i] = s.Name()
	}
	return out
}

// selectors maps selector keys to constructors.
var selectors = map[string]func(rng *rand.Rand) Selector{
	"max":     func(rng *rand.Rand) Selector { return NewMaxPeak(rng) },
	"default": func(*rand.Rand) Selector { return Default{} },
}

// Names lists the registered selectors.
func Names() []string {
	out := make([]string, 0, len(selectors))
	for k := range selectors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseChain builds a chain from selector keys.
func ParseChain(names []string, rng *rand.Rand) (*Chain, error) {
	list := make([]Selector, 0, len(names))
	for _, n := range names {
		ctor, ok := selectors[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, n)
		}
		list = append(list, ctor(rng))
	}
	return NewChain(list...)
}
