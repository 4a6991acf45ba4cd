package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Timing selects which time base of the corpus file becomes Event.Onset/Duration.
type Timing string

const (
	// Relative is metric time in beats.
	Relative Timing = "relative"
	// Absolute is wall time in milliseconds.
	Absolute Timing = "absolute"
)

// ParseTiming parses a timing name. An empty name selects Relative.
func ParseTiming(s string) (Timing, error) {
	switch Timing(strings.ToLower(strings.TrimSpace(s))) {
	case "", Relative:
		return Relative, nil
	case Absolute:
		return Absolute, nil
	}
	return "", fmt.Errorf("unknown timing %q", s)
}

type fileCorpus struct {
	Name   string      `json:"name"`
	TypeID *string     `json:"typeID"`
	Data   []fileEvent `json:"data"`
}

type fileTime map[string][]float64

type fileEvent struct {
	State  *int       `json:"state"`
	Tempo  *float64   `json:"tempo"`
	Time   fileTime   `json:"time"`
	Chroma []float64  `json:"chroma"`
	Pitch  *float64   `json:"pitch"`
	Notes  []fileNote `json:"notes"`
}

type fileNote struct {
	Pitch    *float64 `json:"pitch"`
	Velocity *float64 `json:"velocity"`
	Channel  *float64 `json:"channel"`
	Time     fileTime `json:"time"`
}

// Load reads a corpus file. Missing or malformed fields fail with ErrInvalidFormat; I/O
// failures are returned wrapped.
func Load(path string, timing Timing) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Decode(f, name, timing)
}

// Decode parses a corpus from r. name is used when the file carries none.
func Decode(r io.Reader, name string, timing Timing) (*Corpus, error) {
	if timing == "" {
		timing = Relative
	}
	var raw fileCorpus
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if raw.TypeID == nil {
		return nil, fmt.Errorf("%w: missing typeID", ErrInvalidFormat)
	}
	contentType, err := ParseContentType(*raw.TypeID)
	if err != nil {
		return nil, err
	}
	if raw.Name != "" {
		name = raw.Name
	}

	events := make([]*Event, 0, len(raw.Data))
	for i, fe := range raw.Data {
		e, err := fe.toEvent(timing)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidFormat, i, err)
		}
		events = append(events, e)
	}
	return New(name, contentType, events)
}

func (ft fileTime) span(timing Timing) (Span, error) {
	v, ok := ft[string(timing)]
	if !ok || len(v) < 2 {
		return Span{}, fmt.Errorf("missing %s time", timing)
	}
	return Span{Onset: v[0], Duration: v[1]}, nil
}

func (fe fileEvent) toEvent(timing Timing) (*Event, error) {
	switch {
	case fe.State == nil:
		return nil, fmt.Errorf("missing state")
	case fe.Tempo == nil:
		return nil, fmt.Errorf("missing tempo")
	case fe.Pitch == nil:
		return nil, fmt.Errorf("missing pitch")
	case fe.Time == nil:
		return nil, fmt.Errorf("missing time")
	}
	if len(fe.Chroma) != 12 {
		return nil, fmt.Errorf("chroma has %d bins, want 12", len(fe.Chroma))
	}

	selected, err := fe.Time.span(timing)
	if err != nil {
		return nil, err
	}
	absolute, err := fe.Time.span(Absolute)
	if err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(fe.Notes))
	for j, fn := range fe.Notes {
		if fn.Pitch == nil || fn.Velocity == nil || fn.Channel == nil || fn.Time == nil {
			return nil, fmt.Errorf("note %d: missing pitch, velocity, channel or time", j)
		}
		span, err := fn.Time.span(timing)
		if err != nil {
			return nil, fmt.Errorf("note %d: %v", j, err)
		}
		notes = append(notes, Note{
			Pitch:    round(*fn.Pitch),
			Velocity: round(*fn.Velocity),
			Channel:  round(*fn.Channel),
			Onset:    span.Onset,
			Duration: span.Duration,
		})
	}

	return &Event{
		StateIndex: *fe.State,
		Tempo:      *fe.Tempo,
		Onset:      selected.Onset,
		Duration:   selected.Duration,
		Absolute:   absolute,
		Chroma:     append([]float64(nil), fe.Chroma...),
		Pitch:      round(*fe.Pitch),
		Notes:      notes,
	}, nil
}

func round(v float64) int {
	return int(math.Round(v))
}
