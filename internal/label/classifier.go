package label

import (
	"fmt"
	"math"
	"sort"

	"github.com/leandrodaf/improv/sdk/contracts"
)

// Classifier maps raw input to a Label of one Kind. Implementations are pure.
type Classifier interface {
	Kind() Kind
	Classify(in Input) (Label, error)
}

// DefaultKind is used when a label keyword cannot be parsed.
const DefaultKind = Melodic

// classifiers maps label kinds to their classifier constructors.
var classifiers = map[Kind]func() Classifier{
	Melodic:    func() Classifier { return MelodicClassifier{} },
	PitchClass: func() Classifier { return PitchClassClassifier{} },
	Harmonic:   func() Classifier { return NewHarmonicClassifier(DefaultTable()) },
}

// Kinds returns every registered kind in a stable order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(classifiers))
	for k := range classifiers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New returns the classifier registered for kind.
func New(kind Kind) (Classifier, error) {
	ctor, ok := classifiers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown label kind %q", ErrInvalidInput, kind)
	}
	return ctor(), nil
}

// ParseKind resolves a label keyword.
func ParseKind(s string) (Kind, error) {
	kind := Kind(s)
	if _, ok := classifiers[kind]; !ok {
		return "", fmt.Errorf("%w: unknown label kind %q", ErrInvalidInput, s)
	}
	return kind, nil
}

// ParseKindOrDefault resolves a label keyword, falling back to DefaultKind with a warning.
func ParseKindOrDefault(s string, log contracts.Logger) Kind {
	kind, err := ParseKind(s)
	if err != nil {
		log.Warn("Unknown label kind, using default",
			log.Field().String("requested", s),
			log.Field().String("default", string(DefaultKind)))
		return DefaultKind
	}
	return kind
}

// Classify runs the classifier registered for kind.
func Classify(kind Kind, in Input) (Label, error) {
	c, err := New(kind)
	if err != nil {
		return Label{}, err
	}
	return c.Classify(in)
}

// ClassifyAll labels src with every registered classifier.
func ClassifyAll(src Source) (map[Kind]Label, error) {
	in := FromSource(src)
	labels := make(map[Kind]Label, len(classifiers))
	for _, kind := range Kinds() {
		l, err := Classify(kind, in)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", kind, err)
		}
		labels[kind] = l
	}
	return labels, nil
}

// MelodicClassifier labels a pitch with itself.
type MelodicClassifier struct{}

func (MelodicClassifier) Kind() Kind { return Melodic }

func (MelodicClassifier) Classify(in Input) (Label, error) {
	if !in.HasPitch {
		return Label{}, fmt.Errorf("%w: melodic label requires a pitch", ErrInvalidInput)
	}
	if in.Pitch < 0 || in.Pitch > MaxMelodic {
		return Label{}, fmt.Errorf("%w: pitch %d outside [0, %d]", ErrInvalidInput, in.Pitch, MaxMelodic)
	}
	return Label{Kind: Melodic, Value: in.Pitch}, nil
}

// PitchClassClassifier folds a pitch to its pitch class.
type PitchClassClassifier struct{}

func (PitchClassClassifier) Kind() Kind { return PitchClass }

func (PitchClassClassifier) Classify(in Input) (Label, error) {
	l, err := MelodicClassifier{}.Classify(in)
	if err != nil {
		return Label{}, err
	}
	return Label{Kind: PitchClass, Value: l.Value % ChromaSize}, nil
}

// NodeSpecificity sharpens the similarity between a chroma vector and a table prototype.
const NodeSpecificity = 2.0

// HarmonicClassifier assigns the class of the nearest chroma prototype.
type HarmonicClassifier struct {
	table *Table
}

// NewHarmonicClassifier borrows table; it is never copied or mutated.
func NewHarmonicClassifier(table *Table) HarmonicClassifier {
	return HarmonicClassifier{table: table}
}

func (HarmonicClassifier) Kind() Kind { return Harmonic }

func (c HarmonicClassifier) Classify(in Input) (Label, error) {
	chroma := in.Chroma
	if chroma == nil && in.HasPitch {
		if in.Pitch < 0 {
			return Label{}, fmt.Errorf("%w: negative pitch %d", ErrInvalidInput, in.Pitch)
		}
		chroma = make([]float64, ChromaSize)
		chroma[in.Pitch%ChromaSize] = 1
	}
	if len(chroma) != ChromaSize {
		return Label{}, fmt.Errorf("%w: chroma has %d bins, want %d", ErrInvalidInput, len(chroma), ChromaSize)
	}

	normalized := normalize(chroma)
	best, bestScore := -1, math.Inf(-1)
	for i, row := range c.table.prototypes {
		score := math.Exp(-NodeSpecificity * euclidean(normalized, row))
		// strict comparison: ties keep the first row in table order
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Label{}, fmt.Errorf("%w: empty harmonic table", ErrInvalidInput)
	}
	return Label{Kind: Harmonic, Value: c.table.classes[best]}, nil
}

func normalize(chroma []float64) [ChromaSize]float64 {
	var out [ChromaSize]float64
	peak := 0.0
	for _, v := range chroma {
		if v > peak {
			peak = v
		}
	}
	for i, v := range chroma {
		if peak > 0 {
			out[i] = v / peak
		} else {
			out[i] = v
		}
	}
	return out
}

func euclidean(a, b [ChromaSize]float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
