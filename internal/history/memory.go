// Package history records the events a player has produced.
package history

import (
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/transform"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 100

// Entry is one produced event. Event is the untransformed corpus event.
type Entry struct {
	Event       *corpus.Event
	TriggerTime float64
	Transform   transform.Transform
}

// Memory is a fixed-capacity ring buffer of entries.
type Memory struct {
	entries []Entry
	start   int
	size    int
}

// New returns an empty memory. A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Memory {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Memory{entries: make([]Entry, capacity)}
}

// Append records e, evicting the oldest entry when full.
func (m *Memory) Append(e Entry) {
	if m.size < len(m.entries) {
		m.entries[(m.start+m.size)%len(m.entries)] = e
		m.size++
		return
	}
	m.entries[m.start] = e
	m.start = (m.start + 1) % len(m.entries)
}

// Latest returns the most recent entry.
func (m *Memory) Latest() (Entry, bool) {
	if m == nil || m.size == 0 {
		return Entry{}, false
	}
	return m.entries[(m.start+m.size-1)%len(m.entries)], true
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	return m.size
}

func (m *Memory) Cap() int { return len(m.entries) }

// Entries returns the stored entries from oldest to newest.
func (m *Memory) Entries() []Entry {
	out := make([]Entry, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		out = append(out, m.entries[(m.start+i)%len(m.entries)])
	}
	return out
}

// Clear drops every entry.
func (m *Memory) Clear() {
	clear(m.entries)
	m.start, m.size = 0, 0
}
