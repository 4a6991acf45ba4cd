package improv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/improv/internal/config"
	"github.com/leandrodaf/improv/internal/corpus/corpustest"
	"github.com/leandrodaf/improv/internal/logger"
	"github.com/leandrodaf/improv/internal/player"
	"github.com/leandrodaf/improv/internal/scheduler"
	"github.com/leandrodaf/improv/sdk/contracts"
)

type sink struct {
	mu  sync.Mutex
	out []contracts.Output
}

func (s *sink) Send(out contracts.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, out)
	return nil
}

func (s *sink) states() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var states []int
	for _, o := range s.out {
		if o.Kind == contracts.StateOutput {
			states = append(states, o.StateIndex)
		}
	}
	return states
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	clock := time.Unix(0, 0)
	return New(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithSeed(7),
		contracts.WithClock(func() time.Time { return clock }),
	)
}

func newMelodyPlayer(t *testing.T, e *Engine, mode TriggerMode, pitches ...int) *sink {
	t.Helper()
	out := &sink{}
	if err := e.NewPlayer("p", out, mode); err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	if err := e.CreateStreamView("p", "melody", 1); err != nil {
		t.Fatalf("CreateStreamView: %v", err)
	}
	if err := e.CreateAtom("p", "melody:pitch", AtomConfig{Label: "melodic"}); err != nil {
		t.Fatalf("CreateAtom: %v", err)
	}
	if err := e.SetCorpus("p", corpustest.Melody(t, pitches...)); err != nil {
		t.Fatalf("SetCorpus: %v", err)
	}
	return out
}

func TestEngine_ManualInfluenceTriggers(t *testing.T) {
	e := newEngine(t)
	out := newMelodyPlayer(t, e, Manual, 60, 62, 64, 65, 60, 62, 67)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, pitch := range []int{60, 62, 67} {
		if err := e.InfluencePitch("p", "", pitch); err != nil {
			t.Fatalf("InfluencePitch(%d): %v", pitch, err)
		}
		e.Scheduler().Tick()
	}

	want := []int{0, 1, 6}
	got := out.states()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("states = %v, want %v", got, want)
			break
		}
	}
	history, err := e.History("p")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 || history[2] != 6 {
		t.Errorf("history = %v", history)
	}
}

func TestEngine_AutomaticStartSeedsOneTrigger(t *testing.T) {
	e := newEngine(t)
	newMelodyPlayer(t, e, Automatic, 60, 62, 64)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Pause()
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var triggers int
	for _, ev := range e.Scheduler().Pending() {
		if _, ok := ev.(scheduler.TriggerEvent); ok {
			triggers++
		}
	}
	if triggers != 1 {
		t.Errorf("%d triggers queued after restart, want 1", triggers)
	}
}

func TestEngine_StartReportsUnscheduledPlayer(t *testing.T) {
	e := newEngine(t)
	out := newMelodyPlayer(t, e, Automatic, 60, 62, 64)
	e.players["ghost"] = player.New("ghost", logger.NewNopLogger())

	err := e.Start()
	if !errors.Is(err, scheduler.ErrUnknownPlayer) {
		t.Fatalf("expected scheduler.ErrUnknownPlayer, got %v", err)
	}
	e.Scheduler().Tick()
	if got := out.states(); len(got) != 1 {
		t.Errorf("the scheduled player should still start, got states %v", got)
	}
}

func TestEngine_UnknownPlayer(t *testing.T) {
	e := newEngine(t)
	calls := map[string]error{
		"Influence":  e.Influence("ghost", "", "melodic", 60),
		"ReadCorpus": e.ReadCorpus("ghost", "x.json"),
		"Jump":       e.Jump("ghost"),
		"NewEvent":   e.NewEvent("ghost"),
		"SetWeight":  e.SetWeight("ghost", "a", 1),
	}
	for name, err := range calls {
		if !errors.Is(err, ErrUnknownPlayer) {
			t.Errorf("%s: expected ErrUnknownPlayer, got %v", name, err)
		}
	}

	if err := e.NewPlayer("p", nil, Manual); err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	if err := e.NewPlayer("p", nil, Manual); !errors.Is(err, ErrDuplicatePlayer) {
		t.Errorf("expected ErrDuplicatePlayer, got %v", err)
	}
}

func TestEngine_InfluenceErrors(t *testing.T) {
	e := newEngine(t)
	newMelodyPlayer(t, e, Manual, 60, 62, 64)

	if err := e.Influence("p", "", "texture", 1); err == nil {
		t.Error("expected an error for an unknown label kind")
	}
	if err := e.Influence("p", "melody:missing", "melodic", 60); !errors.Is(err, player.ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
	if err := e.InfluenceChroma("p", "", []float64{1, 0}); err == nil {
		t.Error("expected an error for a short chroma vector")
	}
	if err := e.AddTransforms("p", "", "invert"); err == nil {
		t.Error("expected an error for an unknown transform")
	}
}

func TestEngine_GotoAndJump(t *testing.T) {
	e := newEngine(t)
	out := newMelodyPlayer(t, e, Manual, 60, 62, 64, 65)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.Goto("p", 2); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	e.Scheduler().Tick()
	if err := e.NewEvent("p"); err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	e.Scheduler().Tick()

	got := out.states()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("states = %v, want [2 3]", got)
	}
	if err := e.Goto("p", 9); !errors.Is(err, player.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestListen(t *testing.T) {
	e := newEngine(t)
	newMelodyPlayer(t, e, Manual, 60, 62, 64)

	events := make(chan contracts.MIDI, 3)
	events <- contracts.MIDI{Command: byte(contracts.NoteOn), Note: 60, Velocity: 90}
	events <- contracts.MIDI{Command: byte(contracts.NoteOn), Note: 62, Velocity: 0}
	events <- contracts.MIDI{Command: byte(contracts.NoteOff), Note: 60}
	close(events)

	if err := e.Listen(context.Background(), events, "p", "melody"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if n := len(e.Scheduler().Pending()); n != 1 {
		t.Errorf("%d events queued, want one trigger for the single note on", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Listen(ctx, make(chan contracts.MIDI), "p", "melody"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	midiPath := filepath.Join(dir, "out.mid")

	cfg := config.Default()
	cfg.Scheduler.Seed = 3
	cfg.Players = map[string]config.PlayerConfig{
		"keys": {
			Corpus:      "../../internal/corpus/testdata/three_states.json",
			TriggerMode: "manual",
			Selectors:   []string{"max", "default"},
			History:     8,
			StreamViews: map[string]config.StreamViewConfig{
				"melody":       {Weight: 1, MergeActions: []string{"distance"}},
				"melody:inner": {Weight: 0.5},
			},
			Atoms: map[string]config.AtomConfig{
				"melody:inner:pc": {Label: "pitchclass", Transforms: []string{"transpose:-2..2"}},
				"melody:pitch":    {Label: "melodic", SelfInfluenced: true},
			},
			Output: config.OutputConfig{Type: "smf", Path: midiPath},
		},
	}
	cfg.Scheduler.TempoMaster = "keys"

	e, err := FromConfig(cfg, contracts.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if got := e.Players(); len(got) != 1 || got[0] != "keys" {
		t.Fatalf("Players = %v", got)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.NewEvent("keys"); err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	e.Scheduler().Tick()

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(midiPath); err != nil {
		t.Errorf("recording not written: %v", err)
	}
}

func TestFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.Tempo = 0
	if _, err := FromConfig(cfg, contracts.WithLogger(logger.NewNopLogger())); err == nil {
		t.Error("expected a validation error")
	}
}
