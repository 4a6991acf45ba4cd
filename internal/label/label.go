// Package label maps raw performance data (pitches, chroma vectors) to the
// discrete labels used as n-gram alphabet by the memory index.
package label

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when raw data lies outside a classifier's domain.
var ErrInvalidInput = errors.New("invalid label input")

// Kind discriminates label variants. It is also the registry key of the classifier producing it.
type Kind string

const (
	Melodic    Kind = "melodic"
	PitchClass Kind = "pitchclass"
	Harmonic   Kind = "harmonic"
)

const (
	// MaxMelodic is the highest melodic label. It denotes silence.
	MaxMelodic = 140
	// ChromaSize is the number of bins in a chroma vector.
	ChromaSize = 12
)

// Label is an immutable classified value. Two labels are equal when both kind and value match.
type Label struct {
	Kind  Kind
	Value int
}

func (l Label) String() string {
	return fmt.Sprintf("%s(%d)", l.Kind, l.Value)
}

// Valid reports whether the value lies inside its kind's domain.
func (l Label) Valid() bool {
	switch l.Kind {
	case Melodic:
		return l.Value >= 0 && l.Value <= MaxMelodic
	case PitchClass:
		return l.Value >= 0 && l.Value < ChromaSize
	case Harmonic:
		return l.Value >= 0
	default:
		return false
	}
}

// Input is the raw data a classifier consumes. Build it with FromPitch, FromChroma or FromSource.
type Input struct {
	Pitch    int
	HasPitch bool
	Chroma   []float64
}

// FromPitch wraps a MIDI pitch.
func FromPitch(pitch int) Input {
	return Input{Pitch: pitch, HasPitch: true}
}

// FromChroma wraps a chroma vector.
func FromChroma(chroma []float64) Input {
	return Input{Chroma: chroma}
}

// Source is anything carrying both a pitch and a chroma vector, e.g. a corpus event.
type Source interface {
	FundamentalPitch() int
	ChromaVector() []float64
}

// FromSource builds an Input carrying every field of src.
func FromSource(src Source) Input {
	return Input{Pitch: src.FundamentalPitch(), HasPitch: true, Chroma: src.ChromaVector()}
}
