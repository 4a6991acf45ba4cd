// Package scheduler drives players on a beat clock and turns their events into
// time-stamped output primitives.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/sdk/contracts"
	"go.uber.org/multierr"
)

// Defaults used when Options leave a value unset.
const (
	DefaultTempo        = 120.0
	DefaultTickInterval = time.Millisecond
)

// RetryBeats is how long an automatic player waits before retrying a failed trigger.
const RetryBeats = 1.0

var (
	// ErrUnknownPlayer is returned for a player that was never added.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrDuplicatePlayer is returned when adding a player name twice.
	ErrDuplicatePlayer = errors.New("player already scheduled")
)

// TriggerMode decides whether a player re-triggers itself.
type TriggerMode string

const (
	// Manual players produce one event per external trigger.
	Manual TriggerMode = "manual"
	// Automatic players schedule their next trigger at the end of every event.
	Automatic TriggerMode = "automatic"
)

// ParseTriggerMode parses s, falling back to Manual with a warning.
func ParseTriggerMode(s string, log contracts.Logger) TriggerMode {
	switch TriggerMode(strings.ToLower(strings.TrimSpace(s))) {
	case Automatic:
		return Automatic
	case Manual:
		return Manual
	}
	log.Warn("Unknown trigger mode, using manual", log.Field().String("mode", s))
	return Manual
}

// Generator produces corpus events on request. *player.Player implements it.
type Generator interface {
	Name() string
	NewEvent(t float64) (*corpus.Event, error)
	Corpus() *corpus.Corpus
}

type voice struct {
	gen      Generator
	target   contracts.Target
	mode     TriggerMode
	held     map[corpus.NoteKey]corpus.Note
	sounding map[corpus.NoteKey]bool
}

// Scheduler owns the beat clock and the event queue shared by every player.
type Scheduler struct {
	mu       sync.Mutex
	clock    func() time.Time
	interval time.Duration
	pretime  float64
	logger   contracts.Logger

	running     bool
	beat        float64
	tempo       float64
	last        time.Time
	queue       eventQueue
	seq         uint64
	voices      map[string]*voice
	order       []string
	tempoMaster string
}

// New creates a stopped scheduler from options.
func New(options *contracts.Options) *Scheduler {
	s := &Scheduler{
		clock:    options.Clock,
		interval: options.TickInterval,
		pretime:  options.TriggerPretime,
		tempo:    options.Tempo,
		logger:   options.Logger,
		voices:   make(map[string]*voice),
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	if s.tempo <= 0 {
		s.tempo = DefaultTempo
	}
	return s
}

// Do runs fn under the scheduler lock with the current beat, so that external calls share
// the timeline of the tick loop. fn must not call other Scheduler methods.
func (s *Scheduler) Do(fn func(beat float64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTime()
	return fn(s.beat)
}

// Beat returns the current beat.
func (s *Scheduler) Beat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTime()
	return s.beat
}

func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTempo changes the tempo immediately.
func (s *Scheduler) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("invalid tempo %v", bpm)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTime()
	s.tempo = bpm
	return nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// AddPlayer registers a generator with its output target.
func (s *Scheduler) AddPlayer(gen Generator, target contracts.Target, mode TriggerMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := gen.Name()
	if _, exists := s.voices[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlayer, name)
	}
	s.voices[name] = &voice{
		gen:      gen,
		target:   target,
		mode:     mode,
		held:     make(map[corpus.NoteKey]corpus.Note),
		sounding: make(map[corpus.NoteKey]bool),
	}
	s.order = append(s.order, name)
	return nil
}

// SetTarget replaces the output target of a player.
func (s *Scheduler) SetTarget(name string, target contracts.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.voice(name)
	if err != nil {
		return err
	}
	v.target = target
	return nil
}

// SetTriggerMode changes how a player is re-triggered.
func (s *Scheduler) SetTriggerMode(name string, mode TriggerMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.voice(name)
	if err != nil {
		return err
	}
	v.mode = mode
	return nil
}

// TriggerMode returns the trigger mode of a player.
func (s *Scheduler) TriggerMode(name string) (TriggerMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.voice(name)
	if err != nil {
		return "", err
	}
	return v.mode, nil
}

// SetTempoMaster makes name the only player whose events change the tempo.
// An empty name clears the master.
func (s *Scheduler) SetTempoMaster(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, err := s.voice(name); err != nil {
			return err
		}
	}
	s.tempoMaster = name
	return nil
}

func (s *Scheduler) voice(name string) (*voice, error) {
	v, ok := s.voices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	return v, nil
}

// AddTrigger queues a trigger for name aimed at target, processed pretime beats early
// but never in the past.
func (s *Scheduler) AddTrigger(name string, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.voice(name); err != nil {
		return err
	}
	s.updateTime()
	s.enqueue(TriggerEvent{At: math.Max(s.beat, target-s.pretime), Target: target, Player: name})
	return nil
}

// Enqueue adds a primitive event to the queue.
func (s *Scheduler) Enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(ev)
}

func (s *Scheduler) enqueue(ev Event) {
	s.seq++
	s.queue.push(ev, s.seq)
}

// Pending returns the queued events in processing order.
func (s *Scheduler) Pending() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append(eventQueue(nil), s.queue...)
	sort.Sort(items)
	out := make([]Event, len(items))
	for i, it := range items {
		out[i] = it.ev
	}
	return out
}

// AddCorpusEvent turns ev into primitives for name starting at beat at.
func (s *Scheduler) AddCorpusEvent(name string, ev *corpus.Event, at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.voice(name)
	if err != nil {
		return err
	}
	s.addCorpusEvent(name, v, ev, at)
	return nil
}

// addCorpusEvent splits MIDI notes against the held set so sustained notes are not
// retriggered at the state boundary.
func (s *Scheduler) addCorpusEvent(name string, v *voice, ev *corpus.Event, at float64) {
	if name == s.tempoMaster && ev.Tempo > 0 {
		s.enqueue(TempoEvent{At: at, Tempo: ev.Tempo})
	}

	if c := v.gen.Corpus(); c != nil && c.ContentType() == corpus.Audio {
		s.enqueue(AudioEvent{
			At:             at,
			Player:         name,
			OnsetMs:        ev.Absolute.Onset,
			DurationMs:     ev.Absolute.Duration,
			TransposeCents: ev.Transposition * 100,
		})
		return
	}

	heldTo := keys(ev.HeldTo())
	heldFrom := keys(ev.HeldFrom())

	for _, k := range sortedKeys(v.held) {
		if !heldTo[k] {
			s.enqueue(MidiEvent{At: at, Player: name, Pitch: k.Pitch, Velocity: 0, Channel: k.Channel})
		}
	}
	for _, n := range ev.Notes {
		_, held := v.held[n.Key()]
		if !(held && heldTo[n.Key()]) {
			s.enqueue(MidiEvent{At: at + n.Onset, Player: name, Pitch: n.Pitch, Velocity: n.Velocity, Channel: n.Channel})
		}
	}
	for _, n := range ev.Notes {
		if !heldFrom[n.Key()] {
			s.enqueue(MidiEvent{At: at + n.Onset + n.Duration, Player: name, Pitch: n.Pitch, Velocity: 0, Channel: n.Channel})
		}
	}

	v.held = make(map[corpus.NoteKey]corpus.Note)
	for _, n := range ev.HeldFrom() {
		v.held[n.Key()] = n
	}
}

// Held returns the notes name currently carries into its next event.
func (s *Scheduler) Held(name string) ([]corpus.NoteKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.voice(name)
	if err != nil {
		return nil, err
	}
	return sortedKeys(v.held), nil
}

func keys(notes []corpus.Note) map[corpus.NoteKey]bool {
	out := make(map[corpus.NoteKey]bool, len(notes))
	for _, n := range notes {
		out[n.Key()] = true
	}
	return out
}

func sortedKeys[V any](m map[corpus.NoteKey]V) []corpus.NoteKey {
	out := make([]corpus.NoteKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Pitch < out[j].Pitch
	})
	return out
}

// updateTime advances the beat by the wall time elapsed since the last update.
func (s *Scheduler) updateTime() {
	now := s.clock()
	if s.running {
		s.beat += now.Sub(s.last).Seconds() * s.tempo / 60
	}
	s.last = now
}

// Tick advances the clock and processes every due event in order.
// It does nothing while the scheduler is not running.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.updateTime()
	for s.queue.Len() > 0 && s.queue.peek().Time() <= s.beat {
		s.process(s.queue.pop())
	}
}

func (s *Scheduler) process(ev Event) {
	switch e := ev.(type) {
	case TempoEvent:
		s.tempo = e.Tempo
	case MidiEvent:
		s.processMidi(e)
	case AudioEvent:
		s.send(e.Player, contracts.Output{
			Kind:           contracts.AudioOutput,
			OnsetMs:        e.OnsetMs,
			DurationMs:     e.DurationMs,
			TransposeCents: e.TransposeCents,
		})
	case TriggerEvent:
		s.processTrigger(e)
	}
}

func (s *Scheduler) processMidi(e MidiEvent) {
	if v, ok := s.voices[e.Player]; ok {
		k := corpus.NoteKey{Pitch: e.Pitch, Channel: e.Channel}
		if e.Velocity > 0 {
			v.sounding[k] = true
		} else {
			delete(v.sounding, k)
		}
	}
	s.send(e.Player, contracts.Output{
		Kind:     contracts.MidiOutput,
		Pitch:    e.Pitch,
		Velocity: e.Velocity,
		Channel:  e.Channel,
	})
}

func (s *Scheduler) processTrigger(e TriggerEvent) {
	v, ok := s.voices[e.Player]
	if !ok {
		s.logger.Warn("Trigger for unknown player dropped", s.logger.Field().String("player", e.Player))
		return
	}
	ev, err := v.gen.NewEvent(e.Target)
	if err != nil {
		s.logger.Error("Trigger dropped",
			s.logger.Field().String("player", e.Player),
			s.logger.Field().Float64("beat", s.beat),
			s.logger.Field().Error("error", err))
		if v.mode == Automatic {
			s.enqueue(TriggerEvent{At: e.At + RetryBeats, Target: e.Target + RetryBeats, Player: e.Player})
		}
		return
	}

	s.addCorpusEvent(e.Player, v, ev, e.At)
	s.send(e.Player, contracts.Output{
		Kind:       contracts.StateOutput,
		StateIndex: ev.StateIndex,
		Position:   ev.Onset,
		Length:     ev.Duration,
	})

	if v.mode == Automatic {
		d := ev.Duration * s.tempo / 60
		s.enqueue(TriggerEvent{At: e.At + d, Target: e.Target + d, Player: e.Player})
	}
}

func (s *Scheduler) send(name string, out contracts.Output) {
	v, ok := s.voices[name]
	if !ok || v.target == nil {
		return
	}
	out.Player = name
	out.Beat = s.beat
	if err := v.target.Send(out); err != nil {
		s.logger.Error("Output failed",
			s.logger.Field().String("player", name),
			s.logger.Field().String("kind", string(out.Kind)),
			s.logger.Field().Error("error", err))
	}
}

// Start resumes the clock from the current beat.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.last = s.clock()
	s.running = true
	s.logger.Info("Scheduler started", s.logger.Field().Float64("beat", s.beat), s.logger.Field().Float64("tempo", s.tempo))
}

// Pause halts the clock. Queued events are kept.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTime()
	s.running = false
	s.logger.Info("Scheduler paused", s.logger.Field().Float64("beat", s.beat))
}

// Stop halts the clock, sends a note-off for every sounding or held note, discards the
// queue and rewinds the beat to 0.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false

	var err error
	for _, name := range s.order {
		v := s.voices[name]
		notes := make(map[corpus.NoteKey]bool, len(v.sounding)+len(v.held))
		for k := range v.sounding {
			notes[k] = true
		}
		for k := range v.held {
			notes[k] = true
		}
		for _, k := range sortedKeys(notes) {
			if v.target == nil {
				continue
			}
			err = multierr.Append(err, v.target.Send(contracts.Output{
				Kind:    contracts.MidiOutput,
				Player:  name,
				Beat:    s.beat,
				Pitch:   k.Pitch,
				Channel: k.Channel,
			}))
		}
		v.sounding = make(map[corpus.NoteKey]bool)
		v.held = make(map[corpus.NoteKey]corpus.Note)
	}

	s.queue = nil
	s.beat = 0
	s.logger.Info("Scheduler stopped")
	return err
}

// Run ticks the scheduler every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}
