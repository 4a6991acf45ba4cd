// Package memspace indexes a corpus by label n-grams and matches live input against it.
package memspace

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/transform"
	"github.com/leandrodaf/improv/sdk/contracts"
)

// DefaultSize is the default n-gram window.
const DefaultSize = 3

// ErrUnknownType is returned for an unregistered memory type.
var ErrUnknownType = errors.New("unknown memory type")

// Influence is one corpus event matched by the live input under a transform.
type Influence struct {
	Event     *corpus.Event
	Time      float64
	Transform transform.Transform
}

// Index is a memory index over a corpus.
type Index interface {
	Read(c *corpus.Corpus) error
	Influence(l label.Label, t float64) []Influence
	Reset()
	SetTransforms(ts []transform.Transform)
	Transforms() []transform.Transform
	Kind() label.Kind
}

// Option configures an NGram.
type Option func(*NGram)

// WithSize sets the window size. Values below 1 are ignored.
func WithSize(n int) Option {
	return func(g *NGram) {
		if n > 0 {
			g.size = n
		}
	}
}

// WithTransforms sets the transforms tried on every influence.
func WithTransforms(ts ...transform.Transform) Option {
	return func(g *NGram) {
		if len(ts) > 0 {
			g.transforms = ts
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l contracts.Logger) Option {
	return func(g *NGram) {
		g.logger = l
	}
}

// NGram maps every window of size labels in the corpus to the events closing that window.
type NGram struct {
	kind       label.Kind
	size       int
	transforms []transform.Transform
	logger     contracts.Logger

	table   map[string][]*corpus.Event
	history []label.Label
}

// NewNGram returns an empty index over labels of kind.
func NewNGram(kind label.Kind, log contracts.Logger, opts ...Option) *NGram {
	g := &NGram{
		kind:       kind,
		size:       DefaultSize,
		transforms: transform.Default(),
		logger:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *NGram) Kind() label.Kind { return g.kind }
func (g *NGram) Size() int        { return g.size }

// Built reports whether a corpus has been read.
func (g *NGram) Built() bool { return g.table != nil }

func (g *NGram) Transforms() []transform.Transform { return g.transforms }

// SetTransforms replaces the transform set. An empty set restores the default.
func (g *NGram) SetTransforms(ts []transform.Transform) {
	if len(ts) == 0 {
		ts = transform.Default()
	}
	g.transforms = ts
}

// Read builds the index from c, replacing any previous table and clearing the input history.
func (g *NGram) Read(c *corpus.Corpus) error {
	table := make(map[string][]*corpus.Event)
	labels := make([]label.Label, 0, c.Len())
	for _, ev := range c.Events() {
		l, ok := ev.Label(g.kind)
		if !ok {
			return fmt.Errorf("%w: state %d has no %s label", corpus.ErrInvalidFormat, ev.StateIndex, g.kind)
		}
		labels = append(labels, l)
		if len(labels) < g.size {
			continue
		}
		k := key(labels[len(labels)-g.size:])
		table[k] = append(table[k], ev)
	}

	g.table = table
	g.history = g.history[:0]
	g.logger.Debug("Memory index built",
		g.logger.Field().String("corpus", c.Name()),
		g.logger.Field().String("kind", string(g.kind)),
		g.logger.Field().Int("ngrams", len(table)))
	return nil
}

// Influence appends l to the input history and returns every corpus event whose preceding
// window matches the history under some transform. Each transform is tried on its own and
// the results are concatenated.
func (g *NGram) Influence(l label.Label, t float64) []Influence {
	g.history = append(g.history, l)
	if len(g.history) > g.size {
		g.history = g.history[len(g.history)-g.size:]
	}
	if g.table == nil || len(g.history) < g.size {
		return nil
	}

	var out []Influence
	window := make([]label.Label, g.size)
	for _, tr := range g.transforms {
		if !inverseAll(tr, g.history, window) {
			continue
		}
		for _, ev := range g.table[key(window)] {
			out = append(out, Influence{Event: ev, Time: t, Transform: tr})
		}
	}
	return out
}

// Reset clears the input history. The table is kept.
func (g *NGram) Reset() {
	g.history = g.history[:0]
}

// Keys returns the indexed windows in sorted order.
func (g *NGram) Keys() []string {
	keys := make([]string, 0, len(g.table))
	for k := range g.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the events indexed under window.
func (g *NGram) Lookup(window []label.Label) []*corpus.Event {
	return g.table[key(window)]
}

func inverseAll(tr transform.Transform, in, out []label.Label) bool {
	for i, l := range in {
		inv, err := tr.InverseLabel(l)
		if err != nil {
			return false
		}
		out[i] = inv
	}
	return true
}

func key(window []label.Label) string {
	var b strings.Builder
	for i, l := range window {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(l.Value))
	}
	return b.String()
}
