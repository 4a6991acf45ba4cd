// Package corpus holds the immutable, segmented source material the engine improvises on.
package corpus

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidFormat is returned when a corpus file is missing fields or has an unknown typeID.
var ErrInvalidFormat = errors.New("invalid corpus format")

// ContentType tells the scheduler how to render events.
type ContentType string

const (
	MIDI  ContentType = "MIDI"
	Audio ContentType = "Audio"
)

// ParseContentType validates a typeID.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case MIDI, Audio:
		return ContentType(s), nil
	default:
		return "", fmt.Errorf("%w: typeID must be %q or %q, got %q", ErrInvalidFormat, MIDI, Audio, s)
	}
}

// Corpus is an ordered, immutable sequence of events. A *Corpus is a snapshot: replacing
// a player's corpus publishes a new value and never mutates an existing one.
type Corpus struct {
	name        string
	contentType ContentType
	events      []*Event
}

// New builds a corpus from events sorted by onset. Events are classified if they carry no labels
// and their state indices are checked to be contiguous from 0.
func New(name string, contentType ContentType, events []*Event) (*Corpus, error) {
	if _, err := ParseContentType(string(contentType)); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: corpus %q has no events", ErrInvalidFormat, name)
	}
	for i, e := range events {
		if e.StateIndex != i {
			return nil, fmt.Errorf("%w: event %d has state index %d", ErrInvalidFormat, i, e.StateIndex)
		}
		if i > 0 && e.Onset < events[i-1].Onset {
			return nil, fmt.Errorf("%w: event %d starts before event %d", ErrInvalidFormat, i, i-1)
		}
		if len(e.Labels) == 0 {
			if err := e.Classify(); err != nil {
				return nil, err
			}
		}
	}
	return &Corpus{name: name, contentType: contentType, events: events}, nil
}

func (c *Corpus) String() string {
	return fmt.Sprintf("corpus %q (%s, %d states)", c.name, c.contentType, len(c.events))
}

// Name returns the corpus name.
func (c *Corpus) Name() string { return c.name }

// ContentType returns MIDI or Audio.
func (c *Corpus) ContentType() ContentType { return c.contentType }

// Len returns the number of events.
func (c *Corpus) Len() int { return len(c.events) }

// Events returns the events in order. The slice must not be modified.
func (c *Corpus) Events() []*Event { return c.events }

// EventAt returns the event with the given state index.
func (c *Corpus) EventAt(i int) *Event {
	return c.events[i]
}

// Duration is the end time of the last event.
func (c *Corpus) Duration() float64 {
	return c.events[len(c.events)-1].End()
}

// EventClosest returns the event whose onset is nearest to t; ties go to the earlier event.
func (c *Corpus) EventClosest(t float64) *Event {
	i := sort.Search(len(c.events), func(i int) bool { return c.events[i].Onset >= t })
	switch {
	case i == 0:
		return c.events[0]
	case i == len(c.events):
		return c.events[len(c.events)-1]
	}
	prev, next := c.events[i-1], c.events[i]
	if t-prev.Onset <= next.Onset-t {
		return prev
	}
	return next
}
