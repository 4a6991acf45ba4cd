package player

import (
	"fmt"

	"github.com/leandrodaf/improv/internal/activity"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/history"
	"github.com/leandrodaf/improv/internal/merge"
)

// node is a child of a StreamView: exactly one of atom and view is set.
type node struct {
	atom *Atom
	view *StreamView
}

func (n node) name() string {
	if n.atom != nil {
		return n.atom.name
	}
	return n.view.name
}

func (n node) weight() float64 {
	if n.atom != nil {
		return n.atom.weight
	}
	return n.view.weight
}

func (n node) enabled() bool {
	if n.atom != nil {
		return n.atom.enabled
	}
	return n.view.enabled
}

// StreamView is a weighted group of atoms and streamviews with its own merge actions.
type StreamView struct {
	name     string
	weight   float64
	enabled  bool
	actions  []merge.Action
	children []node
}

// NewStreamView returns an empty enabled streamview.
func NewStreamView(name string, weight float64, actions []merge.Action) *StreamView {
	if weight <= 0 {
		weight = 1
	}
	return &StreamView{name: name, weight: weight, enabled: true, actions: actions}
}

func (s *StreamView) Name() string            { return s.name }
func (s *StreamView) Weight() float64         { return s.weight }
func (s *StreamView) Enabled() bool           { return s.enabled }
func (s *StreamView) Actions() []merge.Action { return s.actions }

func (s *StreamView) child(name string) (node, bool) {
	for _, n := range s.children {
		if n.name() == name {
			return n, true
		}
	}
	return node{}, false
}

func (s *StreamView) add(n node) error {
	if _, exists := s.child(n.name()); exists {
		return fmt.Errorf("%w: %q already exists in %q", ErrDuplicateKey, n.name(), s.name)
	}
	s.children = append(s.children, n)
	return nil
}

func (s *StreamView) remove(name string) bool {
	for i, n := range s.children {
		if n.name() == name {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return true
		}
	}
	return false
}

// Atoms returns every atom below s in insertion order.
func (s *StreamView) Atoms() []*Atom {
	var out []*Atom
	for _, n := range s.children {
		if n.atom != nil {
			out = append(out, n.atom)
		} else {
			out = append(out, n.view.Atoms()...)
		}
	}
	return out
}

// enabledAtoms returns atoms reachable through enabled nodes only.
func (s *StreamView) enabledAtoms() []*Atom {
	var out []*Atom
	for _, n := range s.children {
		if !n.enabled() {
			continue
		}
		if n.atom != nil {
			out = append(out, n.atom)
		} else {
			out = append(out, n.view.enabledAtoms()...)
		}
	}
	return out
}

// MergedPeaks collects the peaks of enabled children, each scaled by its weight over the
// sum of enabled weights, and runs the streamview's merge actions on the result.
func (s *StreamView) MergedPeaks(t float64, h *history.Memory, c *corpus.Corpus) []activity.Peak {
	var total float64
	for _, n := range s.children {
		if n.enabled() {
			total += n.weight()
		}
	}

	var peaks []activity.Peak
	if total > 0 {
		for _, n := range s.children {
			if !n.enabled() {
				continue
			}
			var child []activity.Peak
			if n.atom != nil {
				child = n.atom.Peaks()
			} else {
				child = n.view.MergedPeaks(t, h, c)
			}
			scale := n.weight() / total
			for _, p := range child {
				p.Score *= scale
				peaks = append(peaks, p)
			}
		}
	}
	return merge.Apply(s.actions, peaks, t, h, c)
}
