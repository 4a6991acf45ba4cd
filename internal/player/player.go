// Package player generates corpus events from the activity of a tree of atoms.
package player

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/history"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/memspace"
	"github.com/leandrodaf/improv/internal/merge"
	"github.com/leandrodaf/improv/internal/selector"
	"github.com/leandrodaf/improv/internal/transform"
	"github.com/leandrodaf/improv/sdk/contracts"
)

var (
	// ErrInvalidCorpus is returned when generating without a loaded corpus.
	ErrInvalidCorpus = errors.New("no corpus loaded")
	// ErrInvalidPath is returned for malformed paths or paths naming the wrong node type.
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathNotFound is returned when a path segment does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrDuplicateKey is returned when creating a node whose name is taken.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrLabelKind is returned when an atom receives a label of another kind.
	ErrLabelKind = errors.New("label kind mismatch")
)

// PathSeparator separates the segments of a node path.
const PathSeparator = ":"

// Option configures a Player.
type Option func(*Player)

// WithRand sets the source used for peak tie-breaking.
func WithRand(rng *rand.Rand) Option {
	return func(p *Player) {
		p.rng = rng
	}
}

// WithSelectors replaces the selector chain.
func WithSelectors(chain *selector.Chain) Option {
	return func(p *Player) {
		p.chain = chain
	}
}

// WithMergeActions replaces the merge actions applied to the whole tree.
func WithMergeActions(actions ...merge.Action) Option {
	return func(p *Player) {
		p.root.actions = actions
	}
}

// WithHistory sets the capacity of the improvisation memory.
func WithHistory(capacity int) Option {
	return func(p *Player) {
		p.history = history.New(capacity)
	}
}

// WithTiming selects which timing of the corpus file is read.
func WithTiming(timing corpus.Timing) Option {
	return func(p *Player) {
		p.timing = timing
	}
}

// Player owns a streamview tree, a corpus and the memory of what it produced.
type Player struct {
	id      uuid.UUID
	name    string
	root    *StreamView
	chain   *selector.Chain
	rng     *rand.Rand
	corpus  *corpus.Corpus
	history *history.Memory
	timing  corpus.Timing
	logger  contracts.Logger

	jumpPending bool
	gotoState   int
}

// New returns a player with the default merge pipeline and the max, default selector chain.
func New(name string, log contracts.Logger, opts ...Option) *Player {
	p := &Player{
		id:        uuid.New(),
		name:      name,
		root:      NewStreamView(name, 1, merge.DefaultPipeline()),
		history:   history.New(history.DefaultCapacity),
		timing:    corpus.Relative,
		logger:    log,
		gotoState: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.chain == nil {
		p.chain = selector.DefaultChain(p.rng)
	}
	return p
}

func (p *Player) ID() uuid.UUID                  { return p.id }
func (p *Player) Name() string                   { return p.name }
func (p *Player) Corpus() *corpus.Corpus         { return p.corpus }
func (p *Player) History() *history.Memory       { return p.history }
func (p *Player) Root() *StreamView              { return p.root }
func (p *Player) Selectors() *selector.Chain     { return p.chain }
func (p *Player) Atoms() []*Atom                 { return p.root.Atoms() }
func (p *Player) SetSelectors(c *selector.Chain) { p.chain = c }

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	segments := strings.Split(path, PathSeparator)
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// lookup resolves segments to a node. No segments resolves to the root streamview.
func (p *Player) lookup(segments []string) (node, error) {
	cur := node{view: p.root}
	for i, seg := range segments {
		if cur.view == nil {
			return node{}, fmt.Errorf("%w: %q is an atom", ErrInvalidPath, strings.Join(segments[:i], PathSeparator))
		}
		next, ok := cur.view.child(seg)
		if !ok {
			return node{}, fmt.Errorf("%w: %q in player %q", ErrPathNotFound, strings.Join(segments[:i+1], PathSeparator), p.name)
		}
		cur = next
	}
	return cur, nil
}

// parent resolves every segment but the last to a streamview.
func (p *Player) parent(path string) (*StreamView, string, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(segments) == 0 {
		return nil, "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	n, err := p.lookup(segments[:len(segments)-1])
	if err != nil {
		return nil, "", err
	}
	if n.view == nil {
		return nil, "", fmt.Errorf("%w: parent of %q is an atom", ErrInvalidPath, path)
	}
	return n.view, segments[len(segments)-1], nil
}

func (p *Player) resolve(path string) (node, error) {
	segments, err := splitPath(path)
	if err != nil {
		return node{}, err
	}
	return p.lookup(segments)
}

// CreateStreamView adds a streamview at path.
func (p *Player) CreateStreamView(path string, weight float64, actions []merge.Action) error {
	parent, name, err := p.parent(path)
	if err != nil {
		return err
	}
	if err := parent.add(node{view: NewStreamView(name, weight, actions)}); err != nil {
		return err
	}
	p.logger.Info("StreamView created",
		p.logger.Field().String("player", p.name),
		p.logger.Field().String("path", path))
	return nil
}

// CreateAtom adds an atom at path. Atoms must live inside a streamview.
// When a corpus is loaded the new atom reads it immediately.
func (p *Player) CreateAtom(path string, cfg AtomConfig) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) < 2 {
		return fmt.Errorf("%w: atom %q must be created inside a streamview", ErrInvalidPath, path)
	}
	parent, name, err := p.parent(path)
	if err != nil {
		return err
	}
	atom, err := NewAtom(name, cfg, p.logger)
	if err != nil {
		return err
	}
	if p.corpus != nil {
		if err := atom.Read(p.corpus); err != nil {
			return err
		}
	}
	if err := parent.add(node{atom: atom}); err != nil {
		return err
	}
	p.logger.Info("Atom created",
		p.logger.Field().String("player", p.name),
		p.logger.Field().String("path", path),
		p.logger.Field().String("label", string(atom.kind)))
	return nil
}

// DeleteAtom removes the atom or streamview at path.
func (p *Player) DeleteAtom(path string) error {
	parent, name, err := p.parent(path)
	if err != nil {
		return err
	}
	if !parent.remove(name) {
		return fmt.Errorf("%w: %q in player %q", ErrPathNotFound, path, p.name)
	}
	p.logger.Info("Node deleted",
		p.logger.Field().String("player", p.name),
		p.logger.Field().String("path", path))
	return nil
}

// Influence feeds l to the atom at path, or to every enabled atom of l's kind below the
// streamview at path. An empty path addresses the whole player.
func (p *Player) Influence(path string, l label.Label, t float64) error {
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	if n.atom != nil {
		return n.atom.Influence(l, t)
	}
	for _, a := range n.view.enabledAtoms() {
		if a.kind != l.Kind {
			continue
		}
		if err := a.Influence(l, t); err != nil {
			return err
		}
	}
	return nil
}

// InfluenceSource classifies src with the kind of every enabled atom below path and
// influences each atom with its own label.
func (p *Player) InfluenceSource(path string, src label.Source, t float64) error {
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	atoms := []*Atom{n.atom}
	if n.atom == nil {
		atoms = n.view.enabledAtoms()
	}
	for _, a := range atoms {
		l, err := label.Classify(a.kind, label.FromSource(src))
		if err != nil {
			return err
		}
		if err := a.Influence(l, t); err != nil {
			return err
		}
	}
	return nil
}

// ReadCorpus loads a corpus file. On failure the previous corpus stays active.
func (p *Player) ReadCorpus(path string) error {
	c, err := corpus.Load(path, p.timing)
	if err != nil {
		p.logger.Error("Failed to load corpus",
			p.logger.Field().String("player", p.name),
			p.logger.Field().String("path", path),
			p.logger.Field().Error("error", err))
		return err
	}
	return p.SetCorpus(c)
}

// SetCorpus makes c the active corpus and rebuilds every atom over it. When an atom cannot
// index c nothing changes: the previous corpus, indexes and peaks stay active.
func (p *Player) SetCorpus(c *corpus.Corpus) error {
	atoms := p.root.Atoms()
	indexes := make([]memspace.Index, len(atoms))
	for i, a := range atoms {
		index, err := a.build(c)
		if err != nil {
			p.logger.Error("Failed to index corpus",
				p.logger.Field().String("player", p.name),
				p.logger.Field().String("corpus", c.Name()),
				p.logger.Field().Error("error", err))
			return err
		}
		indexes[i] = index
	}
	for i, a := range atoms {
		a.commit(indexes[i], c)
	}
	p.corpus = c
	p.history.Clear()
	p.gotoState = -1
	p.jumpPending = false
	p.logger.Info("Corpus loaded",
		p.logger.Field().String("player", p.name),
		p.logger.Field().String("corpus", c.Name()),
		p.logger.Field().Int("events", c.Len()))
	return nil
}

// SetWeight sets the weight of the node at path.
func (p *Player) SetWeight(path string, w float64) error {
	if w < 0 {
		return fmt.Errorf("%w: negative weight %v", ErrInvalidPath, w)
	}
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	if n.atom != nil {
		n.atom.weight = w
	} else {
		n.view.weight = w
	}
	return nil
}

// SetEnabled enables or disables the node at path.
func (p *Player) SetEnabled(path string, enabled bool) error {
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	if n.atom != nil {
		n.atom.enabled = enabled
	} else {
		n.view.enabled = enabled
	}
	return nil
}

// SetSelfInfluenced toggles self-influence of the atom at path.
func (p *Player) SetSelfInfluenced(path string, v bool) error {
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	if n.atom == nil {
		return fmt.Errorf("%w: %q is not an atom", ErrInvalidPath, path)
	}
	n.atom.selfInfluenced = v
	return nil
}

// AddTransforms adds ts to the atom at path, or to every atom below a streamview.
func (p *Player) AddTransforms(path string, ts []transform.Transform) error {
	n, err := p.resolve(path)
	if err != nil {
		return err
	}
	if n.atom != nil {
		n.atom.AddTransforms(ts)
		return nil
	}
	for _, a := range n.view.Atoms() {
		a.AddTransforms(ts)
	}
	return nil
}

// Jump makes the next event avoid the direct continuation of the last one.
func (p *Player) Jump() {
	p.jumpPending = true
}

// Goto makes the next event the corpus state at index, untransformed.
func (p *Player) Goto(index int) error {
	if p.corpus == nil {
		return ErrInvalidCorpus
	}
	if index < 0 || index >= p.corpus.Len() {
		return fmt.Errorf("%w: state %d outside [0, %d)", ErrInvalidPath, index, p.corpus.Len())
	}
	p.gotoState = index
	return nil
}

// Reset drops all peaks, input histories and the improvisation memory.
func (p *Player) Reset() {
	for _, a := range p.root.Atoms() {
		a.Reset()
	}
	p.history.Clear()
	p.jumpPending = false
	p.gotoState = -1
}

// Peaks returns the merged peaks of the whole tree at t without generating.
func (p *Player) Peaks(t float64) []activity.Peak {
	return p.root.MergedPeaks(t, p.history, p.corpus)
}

// NewEvent selects the next corpus event at scheduler time t and returns a transformed
// copy of it. The corpus is never modified.
func (p *Player) NewEvent(t float64) (*corpus.Event, error) {
	if p.corpus == nil {
		return nil, fmt.Errorf("%w: player %q", ErrInvalidCorpus, p.name)
	}

	atoms := p.root.Atoms()
	for _, a := range atoms {
		a.UpdatePeaks(t)
	}

	if p.gotoState >= p.corpus.Len() {
		p.logger.Warn("Goto state outside corpus dropped",
			p.logger.Field().String("player", p.name),
			p.logger.Field().Int("state", p.gotoState))
		p.gotoState = -1
	}

	var decision selector.Decision
	if p.gotoState >= 0 {
		decision = selector.Decision{Event: p.corpus.EventAt(p.gotoState), Transform: transform.Identity{}}
		p.gotoState = -1
		p.jumpPending = false
	} else {
		peaks := p.root.MergedPeaks(t, p.history, p.corpus)
		if p.jumpPending {
			peaks = p.dropContinuation(peaks)
			p.jumpPending = false
		}
		var ok bool
		if decision, ok = p.chain.Decide(peaks, p.history, p.corpus); !ok {
			return nil, fmt.Errorf("%w: player %q has an empty corpus", ErrInvalidCorpus, p.name)
		}
	}

	out, err := decision.Transform.TransformEvent(decision.Event.Clone())
	if err != nil {
		return nil, err
	}
	p.history.Append(history.Entry{Event: decision.Event, TriggerTime: t, Transform: decision.Transform})

	for _, a := range atoms {
		if !a.selfInfluenced {
			continue
		}
		l, ok := out.Label(a.kind)
		if !ok {
			continue
		}
		if err := a.Influence(l, t); err != nil {
			p.logger.Warn("Self influence failed",
				p.logger.Field().String("atom", a.name),
				p.logger.Field().Error("error", err))
		}
	}

	p.logger.Debug("New event",
		p.logger.Field().String("player", p.name),
		p.logger.Field().Int("state", decision.Event.StateIndex),
		p.logger.Field().String("transform", decision.Transform.Name()),
		p.logger.Field().Float64("time", t))
	return out, nil
}

func (p *Player) dropContinuation(peaks []activity.Peak) []activity.Peak {
	last, ok := p.history.Latest()
	if !ok {
		return peaks
	}
	next := last.Event.StateIndex + 1
	var kept []activity.Peak
	for _, pk := range peaks {
		if p.corpus.EventClosest(pk.Time).StateIndex != next {
			kept = append(kept, pk)
		}
	}
	return kept
}
