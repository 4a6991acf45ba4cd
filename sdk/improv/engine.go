// Package improv is the public surface of the improvisation engine: a registry of
// players driven by one scheduler.
package improv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/leandrodaf/improv/internal/config"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/merge"
	"github.com/leandrodaf/improv/internal/player"
	"github.com/leandrodaf/improv/internal/scheduler"
	"github.com/leandrodaf/improv/internal/transform"
	"github.com/leandrodaf/improv/sdk/contracts"
	"github.com/leandrodaf/improv/sdk/midi"
	"go.uber.org/multierr"
)

var (
	// ErrUnknownPlayer is returned for a player name that was never created.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrDuplicatePlayer is returned when creating a player whose name is taken.
	ErrDuplicatePlayer = errors.New("player already exists")
)

// TriggerMode decides whether a player re-triggers itself after every event.
type TriggerMode = scheduler.TriggerMode

const (
	Manual    = scheduler.Manual
	Automatic = scheduler.Automatic
)

// AtomConfig describes an atom with the same fields as the configuration file.
type AtomConfig = config.AtomConfig

// Engine owns the players and the scheduler that drives them. Every call touching a
// player runs on the scheduler timeline.
type Engine struct {
	options contracts.Options
	logger  contracts.Logger
	sched   *scheduler.Scheduler
	rng     *rand.Rand

	mu      sync.RWMutex
	players map[string]*player.Player
	closers []io.Closer
}

// New creates a stopped engine. Unset options get the sdk/midi defaults.
func New(opts ...contracts.Option) *Engine {
	options := midi.ApplyDefaultOptions(opts...)
	seed := options.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Engine{
		options: options,
		logger:  options.Logger,
		sched:   scheduler.New(&options),
		rng:     rand.New(rand.NewPCG(seed, seed)),
		players: make(map[string]*player.Player),
	}
}

// Logger returns the engine logger.
func (e *Engine) Logger() contracts.Logger { return e.logger }

// Scheduler exposes the scheduler, e.g. to tick it from a custom loop.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// NewPlayer registers a player sending its output to target.
func (e *Engine) NewPlayer(name string, target contracts.Target, mode TriggerMode) error {
	return e.newPlayer(name, target, mode)
}

func (e *Engine) newPlayer(name string, target contracts.Target, mode TriggerMode, opts ...player.Option) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.players[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePlayer, name)
	}

	p := player.New(name, e.logger, append([]player.Option{player.WithRand(e.rng)}, opts...)...)
	if err := e.sched.AddPlayer(p, target, mode); err != nil {
		return err
	}
	e.players[name] = p
	e.logger.Info("Player created",
		e.logger.Field().String("player", name),
		e.logger.Field().String("id", p.ID().String()),
		e.logger.Field().String("mode", string(mode)))
	return nil
}

// Players returns the registered player names in sorted order.
func (e *Engine) Players() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.players))
	for n := range e.players {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) player(name string) (*player.Player, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.players[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	return p, nil
}

// with runs fn against the named player on the scheduler timeline.
func (e *Engine) with(name string, fn func(p *player.Player, beat float64) error) error {
	p, err := e.player(name)
	if err != nil {
		return err
	}
	return e.sched.Do(func(beat float64) error {
		return fn(p, beat)
	})
}

// CreateStreamView adds a streamview at path. No merge actions means none are applied.
func (e *Engine) CreateStreamView(name, path string, weight float64, mergeActions ...string) error {
	actions, err := merge.ParseList(mergeActions)
	if err != nil {
		return err
	}
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.CreateStreamView(path, weight, actions)
	})
}

// CreateAtom adds an atom at path.
func (e *Engine) CreateAtom(name, path string, cfg AtomConfig) error {
	ac, err := atomConfig(cfg)
	if err != nil {
		return err
	}
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.CreateAtom(path, ac)
	})
}

func atomConfig(cfg AtomConfig) (player.AtomConfig, error) {
	ac := player.AtomConfig{
		Weight:         cfg.Weight,
		ActivityType:   cfg.Activity,
		MemoryType:     cfg.Memory,
		SelfInfluenced: cfg.SelfInfluenced,
		NGramSize:      cfg.NGramSize,
		Tau:            cfg.Tau,
		Extinction:     cfg.Extinction,
	}
	if cfg.Label != "" {
		kind, err := label.ParseKind(cfg.Label)
		if err != nil {
			return ac, err
		}
		ac.Kind = kind
	}
	if len(cfg.Transforms) > 0 {
		ts, err := transform.Parse(cfg.Transforms)
		if err != nil {
			return ac, err
		}
		ac.Transforms = ts
	}
	return ac, nil
}

// DeleteAtom removes the atom at path.
func (e *Engine) DeleteAtom(name, path string) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.DeleteAtom(path)
	})
}

// Influence feeds a label to the node at path. A manual player is then triggered.
func (e *Engine) Influence(name, path, kind string, value int) error {
	k, err := label.ParseKind(kind)
	if err != nil {
		return err
	}
	l := label.Label{Kind: k, Value: value}
	return e.influence(name, func(p *player.Player, beat float64) error {
		return p.Influence(path, l, beat)
	})
}

type pitchSource int

func (s pitchSource) FundamentalPitch() int   { return int(s) }
func (s pitchSource) ChromaVector() []float64 { return nil }

// InfluencePitch labels pitch for every enabled atom below path and influences each with
// the label of its kind.
func (e *Engine) InfluencePitch(name, path string, pitch int) error {
	return e.influence(name, func(p *player.Player, beat float64) error {
		return p.InfluenceSource(path, pitchSource(pitch), beat)
	})
}

// InfluenceChroma influences the harmonic atoms below path with the class of chroma.
func (e *Engine) InfluenceChroma(name, path string, chroma []float64) error {
	l, err := label.Classify(label.Harmonic, label.FromChroma(chroma))
	if err != nil {
		return err
	}
	return e.influence(name, func(p *player.Player, beat float64) error {
		return p.Influence(path, l, beat)
	})
}

func (e *Engine) influence(name string, fn func(p *player.Player, beat float64) error) error {
	var at float64
	err := e.with(name, func(p *player.Player, beat float64) error {
		at = beat
		return fn(p, beat)
	})
	if err != nil {
		return err
	}
	mode, err := e.sched.TriggerMode(name)
	if err != nil {
		return err
	}
	if mode == scheduler.Manual {
		return e.sched.AddTrigger(name, at)
	}
	return nil
}

// NewEvent triggers the player at the current beat.
func (e *Engine) NewEvent(name string) error {
	if _, err := e.player(name); err != nil {
		return err
	}
	return e.sched.AddTrigger(name, e.sched.Beat())
}

// Goto makes the next event of the player the corpus state at index and triggers it.
func (e *Engine) Goto(name string, index int) error {
	if err := e.with(name, func(p *player.Player, _ float64) error {
		return p.Goto(index)
	}); err != nil {
		return err
	}
	return e.NewEvent(name)
}

// ReadCorpus loads a corpus file into the player. On failure the previous corpus stays.
func (e *Engine) ReadCorpus(name, path string) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.ReadCorpus(path)
	})
}

// SetCorpus makes c the active corpus of the player.
func (e *Engine) SetCorpus(name string, c *corpus.Corpus) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.SetCorpus(c)
	})
}

// SetWeight sets the weight of the node at path.
func (e *Engine) SetWeight(name, path string, w float64) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.SetWeight(path, w)
	})
}

// SetEnabled enables or disables the node at path.
func (e *Engine) SetEnabled(name, path string, enabled bool) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.SetEnabled(path, enabled)
	})
}

// AddTransforms adds parsed transforms to every atom below path.
func (e *Engine) AddTransforms(name, path string, specs ...string) error {
	ts, err := transform.Parse(specs)
	if err != nil {
		return err
	}
	return e.with(name, func(p *player.Player, _ float64) error {
		return p.AddTransforms(path, ts)
	})
}

// SetTriggerMode switches the player between manual and automatic triggering.
// Switching to automatic starts the trigger chain at the current beat.
func (e *Engine) SetTriggerMode(name string, mode TriggerMode) error {
	if err := e.sched.SetTriggerMode(name, mode); err != nil {
		return err
	}
	if mode == scheduler.Automatic && !e.triggerPending(name) {
		return e.NewEvent(name)
	}
	return nil
}

func (e *Engine) triggerPending(name string) bool {
	for _, ev := range e.sched.Pending() {
		if t, ok := ev.(scheduler.TriggerEvent); ok && t.Player == name {
			return true
		}
	}
	return false
}

// SetTempo sets the scheduler tempo in beats per minute.
func (e *Engine) SetTempo(bpm float64) error { return e.sched.SetTempo(bpm) }

// SetTempoMaster makes the player's corpus tempo drive the scheduler.
func (e *Engine) SetTempoMaster(name string) error { return e.sched.SetTempoMaster(name) }

// Jump makes the next event of the player avoid continuing the last one.
func (e *Engine) Jump(name string) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		p.Jump()
		return nil
	})
}

// Reset clears the peaks and memory of the player.
func (e *Engine) Reset(name string) error {
	return e.with(name, func(p *player.Player, _ float64) error {
		p.Reset()
		return nil
	})
}

// History returns the state indices the player produced, oldest first.
func (e *Engine) History(name string) ([]int, error) {
	var states []int
	err := e.with(name, func(p *player.Player, _ float64) error {
		for _, entry := range p.History().Entries() {
			states = append(states, entry.Event.StateIndex)
		}
		return nil
	})
	return states, err
}

// Start starts the clock and the trigger chain of every automatic player that has none queued.
func (e *Engine) Start() error {
	e.sched.Start()
	var err error
	for _, name := range e.Players() {
		mode, mErr := e.sched.TriggerMode(name)
		if mErr != nil {
			err = multierr.Append(err, mErr)
			continue
		}
		if mode == scheduler.Automatic && !e.triggerPending(name) {
			err = multierr.Append(err, e.NewEvent(name))
		}
	}
	return err
}

// Pause halts the clock; queued events are kept.
func (e *Engine) Pause() { e.sched.Pause() }

// Stop halts the clock and silences every sounding note.
func (e *Engine) Stop() error { return e.sched.Stop() }

// Run ticks the scheduler until ctx is done.
func (e *Engine) Run(ctx context.Context) error { return e.sched.Run(ctx) }

// Close stops the engine and closes the targets it opened.
func (e *Engine) Close() error {
	err := e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.closers {
		err = multierr.Append(err, c.Close())
	}
	e.closers = nil
	return err
}

func (e *Engine) addCloser(c io.Closer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closers = append(e.closers, c)
}
