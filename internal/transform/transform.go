// Package transform provides reversible relabelings applied to labels and corpus events.
package transform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/label"
)

// ErrTransform is returned when a transform is applied to a label it does not support
// or would move a label outside its domain.
var ErrTransform = errors.New("transform error")

// Transform is a pure, invertible mapping. Hash is value based: equal transforms share it.
type Transform interface {
	Name() string
	Hash() uint64
	ValidKinds() []label.Kind
	TransformLabel(l label.Label) (label.Label, error)
	InverseLabel(l label.Label) (label.Label, error)
	// TransformEvent and InverseEvent modify and return the event they are given;
	// callers pass a clone.
	TransformEvent(e *corpus.Event) (*corpus.Event, error)
	InverseEvent(e *corpus.Event) (*corpus.Event, error)
}

// Supports reports whether t may act on labels of kind.
func Supports(t Transform, kind label.Kind) bool {
	for _, k := range t.ValidKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Equal compares transforms by hash.
func Equal(a, b Transform) bool {
	return a.Hash() == b.Hash()
}

func hashOf(name string, params ...int64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	var buf [8]byte
	for _, p := range params {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Identity leaves everything unchanged and is valid for every label kind.
type Identity struct{}

var identityHash = hashOf("identity")

func (Identity) Name() string             { return "identity" }
func (Identity) Hash() uint64             { return identityHash }
func (Identity) ValidKinds() []label.Kind { return label.Kinds() }
func (Identity) String() string           { return "Identity()" }

func (Identity) TransformLabel(l label.Label) (label.Label, error) { return l, nil }
func (Identity) InverseLabel(l label.Label) (label.Label, error)   { return l, nil }

func (Identity) TransformEvent(e *corpus.Event) (*corpus.Event, error) { return e, nil }
func (Identity) InverseEvent(e *corpus.Event) (*corpus.Event, error)   { return e, nil }

// Transpose shifts pitches by a number of semitones.
type Transpose struct {
	Semitones int
}

func (t Transpose) Name() string   { return fmt.Sprintf("transpose:%d", t.Semitones) }
func (t Transpose) Hash() uint64   { return hashOf("transpose", int64(t.Semitones)) }
func (t Transpose) String() string { return fmt.Sprintf("Transpose(%d)", t.Semitones) }

// ValidKinds lists the pitch label kinds. Harmonic labels are re-derived from the rotated
// chroma when an event is transposed, never shifted directly.
func (t Transpose) ValidKinds() []label.Kind {
	return []label.Kind{label.Melodic, label.PitchClass}
}

func (t Transpose) TransformLabel(l label.Label) (label.Label, error) {
	return t.shiftLabel(l, t.Semitones)
}

func (t Transpose) InverseLabel(l label.Label) (label.Label, error) {
	return t.shiftLabel(l, -t.Semitones)
}

func (t Transpose) shiftLabel(l label.Label, n int) (label.Label, error) {
	switch l.Kind {
	case label.Melodic:
		out := label.Label{Kind: label.Melodic, Value: l.Value + n}
		if !out.Valid() {
			return label.Label{}, fmt.Errorf("%w: %s moves %v out of range", ErrTransform, t, l)
		}
		return out, nil
	case label.PitchClass:
		return label.Label{Kind: label.PitchClass, Value: mod12(l.Value + n)}, nil
	default:
		return label.Label{}, fmt.Errorf("%w: %s does not support %s labels", ErrTransform, t, l.Kind)
	}
}

func (t Transpose) TransformEvent(e *corpus.Event) (*corpus.Event, error) {
	return t.shiftEvent(e, t.Semitones)
}

func (t Transpose) InverseEvent(e *corpus.Event) (*corpus.Event, error) {
	return t.shiftEvent(e, -t.Semitones)
}

// shiftEvent never fails: silence keeps its pitch, and a label that cannot follow the
// shift keeps its previous value.
func (t Transpose) shiftEvent(e *corpus.Event, n int) (*corpus.Event, error) {
	if n == 0 {
		return e, nil
	}
	silent := e.Pitch == label.MaxMelodic
	if !silent {
		e.Pitch += n
	}
	for i := range e.Notes {
		e.Notes[i].Pitch += n
	}
	e.Chroma = rotate(e.Chroma, n)
	e.Transposition += n

	for kind, l := range e.Labels {
		if silent && Supports(t, kind) {
			continue
		}
		var (
			shifted label.Label
			err     error
		)
		if Supports(t, kind) {
			shifted, err = t.shiftLabel(l, n)
		} else {
			shifted, err = label.Classify(kind, label.FromSource(e))
		}
		if err != nil {
			continue
		}
		e.Labels[kind] = shifted
	}
	return e, nil
}

func rotate(chroma []float64, n int) []float64 {
	if len(chroma) == 0 {
		return chroma
	}
	out := make([]float64, len(chroma))
	for i, v := range chroma {
		out[mod(i+n, len(chroma))] = v
	}
	return out
}

func mod12(v int) int { return mod(v, label.ChromaSize) }

func mod(v, m int) int {
	return ((v % m) + m) % m
}
