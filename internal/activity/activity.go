// Package activity holds the decaying peaks of an atom.
package activity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/leandrodaf/improv/internal/memspace"
	"github.com/leandrodaf/improv/internal/transform"
)

// Default parameters of the classic pattern.
const (
	DefaultTau        = 2.0
	DefaultExtinction = 0.1
	DefaultScore      = 1.0
	DefaultType       = "classic"
)

// ErrUnknownType is returned for an unregistered activity type.
var ErrUnknownType = errors.New("unknown activity type")

// Peak is a decaying unit of matching evidence positioned in corpus time.
type Peak struct {
	Time       float64
	Score      float64
	Transform  transform.Transform
	LastUpdate float64
}

// Pattern holds the live peaks of one atom. UpdatePeaks must run before Insert
// so that new peaks start undecayed.
type Pattern interface {
	Insert(matches []memspace.Influence)
	UpdatePeaks(t float64)
	Peaks() []Peak
	Reset()
	SetHorizon(d float64)
}

// Option configures a Classic pattern.
type Option func(*Classic)

// WithTau sets the decay constant.
func WithTau(tau float64) Option {
	return func(c *Classic) {
		if tau > 0 {
			c.tau = tau
		}
	}
}

// WithExtinction sets the score at or below which a peak is dropped.
func WithExtinction(threshold float64) Option {
	return func(c *Classic) {
		c.extinction = threshold
	}
}

// WithDefaultScore sets the score of newly inserted peaks.
func WithDefaultScore(score float64) Option {
	return func(c *Classic) {
		c.score = score
	}
}

// Classic decays peak scores exponentially while advancing their position.
type Classic struct {
	tau        float64
	extinction float64
	score      float64
	horizon    float64
	peaks      []Peak
}

// NewClassic returns an empty pattern with no horizon.
func NewClassic(opts ...Option) *Classic {
	c := &Classic{
		tau:        DefaultTau,
		extinction: DefaultExtinction,
		score:      DefaultScore,
		horizon:    math.Inf(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHorizon sets the corpus duration past which peaks are dropped.
func (c *Classic) SetHorizon(d float64) {
	if d <= 0 {
		d = math.Inf(1)
	}
	c.horizon = d
}

// Insert adds one fresh peak per match at the matched event's onset.
func (c *Classic) Insert(matches []memspace.Influence) {
	for _, m := range matches {
		c.peaks = append(c.peaks, Peak{
			Time:       m.Event.Onset,
			Score:      c.score,
			Transform:  m.Transform,
			LastUpdate: m.Time,
		})
	}
}

// UpdatePeaks decays and advances every peak to t, then drops extinct peaks.
func (c *Classic) UpdatePeaks(t float64) {
	kept := c.peaks[:0]
	for _, p := range c.peaks {
		dt := t - p.LastUpdate
		p.Score *= math.Exp(-dt / c.tau)
		p.Time += dt
		p.LastUpdate = t
		if p.Score <= c.extinction || p.Time > c.horizon {
			continue
		}
		kept = append(kept, p)
	}
	c.peaks = kept
}

// Peaks returns a copy of the live peaks.
func (c *Classic) Peaks() []Peak {
	out := make([]Peak, len(c.peaks))
	copy(out, c.peaks)
	return out
}

// Reset drops every peak.
func (c *Classic) Reset() {
	c.peaks = nil
}

// patterns maps activity type keys to their constructors.
var patterns = map[string]func(...Option) Pattern{
	"classic": func(opts ...Option) Pattern { return NewClassic(opts...) },
}

// Types lists the registered activity types.
func Types() []string {
	out := make([]string, 0, len(patterns))
	for k := range patterns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the pattern registered under name.
func New(name string, opts ...Option) (Pattern, error) {
	if name == "" {
		name = DefaultType
	}
	ctor, ok := patterns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return ctor(opts...), nil
}
