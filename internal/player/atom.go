package player

import (
	"fmt"

	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/memspace"
	"github.com/leandrodaf/improv/internal/transform"
	"github.com/leandrodaf/improv/sdk/contracts"
)

// AtomConfig describes an atom to create. Zero values select the defaults.
type AtomConfig struct {
	Weight         float64
	Kind           label.Kind
	ActivityType   string
	MemoryType     string
	SelfInfluenced bool
	Transforms     []transform.Transform
	NGramSize      int
	Tau            float64
	Extinction     float64
}

// Atom pairs a memory index with an activity pattern over one label kind.
type Atom struct {
	name           string
	weight         float64
	enabled        bool
	selfInfluenced bool
	kind           label.Kind
	memoryType     string
	ngramSize      int

	index   memspace.Index
	pattern activity.Pattern
	logger  contracts.Logger
}

// NewAtom builds an atom from cfg.
func NewAtom(name string, cfg AtomConfig, log contracts.Logger) (*Atom, error) {
	if cfg.Kind == "" {
		cfg.Kind = label.DefaultKind
	}
	if _, err := label.New(cfg.Kind); err != nil {
		return nil, err
	}
	if cfg.Weight <= 0 {
		cfg.Weight = 1
	}

	var actOpts []activity.Option
	if cfg.Tau > 0 {
		actOpts = append(actOpts, activity.WithTau(cfg.Tau))
	}
	if cfg.Extinction > 0 {
		actOpts = append(actOpts, activity.WithExtinction(cfg.Extinction))
	}
	pattern, err := activity.New(cfg.ActivityType, actOpts...)
	if err != nil {
		return nil, err
	}
	index, err := memspace.New(cfg.MemoryType, cfg.Kind, log,
		memspace.WithSize(cfg.NGramSize),
		memspace.WithTransforms(cfg.Transforms...))
	if err != nil {
		return nil, err
	}

	return &Atom{
		name:           name,
		weight:         cfg.Weight,
		enabled:        true,
		selfInfluenced: cfg.SelfInfluenced,
		kind:           cfg.Kind,
		memoryType:     cfg.MemoryType,
		ngramSize:      cfg.NGramSize,
		index:          index,
		pattern:        pattern,
		logger:         log,
	}, nil
}

func (a *Atom) Name() string         { return a.name }
func (a *Atom) Kind() label.Kind     { return a.kind }
func (a *Atom) Weight() float64      { return a.weight }
func (a *Atom) Enabled() bool        { return a.enabled }
func (a *Atom) SelfInfluenced() bool { return a.selfInfluenced }

func (a *Atom) SetSelfInfluenced(v bool) { a.selfInfluenced = v }

// Read rebuilds the index over c and drops every peak. On failure the atom is unchanged.
func (a *Atom) Read(c *corpus.Corpus) error {
	index, err := a.build(c)
	if err != nil {
		return err
	}
	a.commit(index, c)
	return nil
}

// build returns a new index over c with the atom's settings, leaving the current one alone.
func (a *Atom) build(c *corpus.Corpus) (memspace.Index, error) {
	index, err := memspace.New(a.memoryType, a.kind, a.logger,
		memspace.WithSize(a.ngramSize),
		memspace.WithTransforms(a.index.Transforms()...))
	if err != nil {
		return nil, err
	}
	if err := index.Read(c); err != nil {
		return nil, fmt.Errorf("atom %q: %w", a.name, err)
	}
	return index, nil
}

func (a *Atom) commit(index memspace.Index, c *corpus.Corpus) {
	a.index = index
	a.pattern.Reset()
	a.pattern.SetHorizon(c.Duration())
}

// Influence matches l against the index and inserts the resulting peaks at t.
func (a *Atom) Influence(l label.Label, t float64) error {
	if l.Kind != a.kind {
		return fmt.Errorf("%w: atom %q expects %s labels, got %s", ErrLabelKind, a.name, a.kind, l.Kind)
	}
	matches := a.index.Influence(l, t)
	a.pattern.UpdatePeaks(t)
	a.pattern.Insert(matches)
	if len(matches) > 0 {
		a.logger.Debug("Atom influenced",
			a.logger.Field().String("atom", a.name),
			a.logger.Field().String("label", l.String()),
			a.logger.Field().Int("matches", len(matches)),
			a.logger.Field().Float64("time", t))
	}
	return nil
}

func (a *Atom) UpdatePeaks(t float64)  { a.pattern.UpdatePeaks(t) }
func (a *Atom) Peaks() []activity.Peak { return a.pattern.Peaks() }

// Reset drops peaks and the input history.
func (a *Atom) Reset() {
	a.pattern.Reset()
	a.index.Reset()
}

// AddTransforms adds transforms the atom does not already use.
func (a *Atom) AddTransforms(ts []transform.Transform) {
	current := a.index.Transforms()
	merged := append([]transform.Transform(nil), current...)
	for _, t := range ts {
		dup := false
		for _, c := range current {
			if transform.Equal(c, t) {
				dup = true
				break
			}
		}
		if !dup {
			merged = append(merged, t)
		}
	}
	a.index.SetTransforms(merged)
}

func (a *Atom) Transforms() []transform.Transform { return a.index.Transforms() }
