package improv

import (
	"fmt"
	"strings"

	"github.com/leandrodaf/improv/internal/config"
	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/merge"
	"github.com/leandrodaf/improv/internal/player"
	"github.com/leandrodaf/improv/internal/scheduler"
	"github.com/leandrodaf/improv/internal/selector"
	"github.com/leandrodaf/improv/internal/target"
	"github.com/leandrodaf/improv/sdk/contracts"
)

// Config is the engine configuration file.
type Config = config.Config

// LoadConfig reads the configuration at path, or the defaults when it does not exist.
func LoadConfig(path string) (*Config, error) {
	return config.LoadOrDefault(path)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// FromConfig builds an engine with the players described by cfg. opts are applied after
// the options derived from cfg. Players whose corpus fails to load are kept without one.
func FromConfig(cfg *Config, opts ...contracts.Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := config.ParseLogLevel(cfg.Logging.Level)

	base := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithTempo(cfg.Scheduler.Tempo),
		contracts.WithTickInterval(cfg.Scheduler.TickInterval),
		contracts.WithTriggerPretime(cfg.Scheduler.TriggerPretime),
		contracts.WithSeed(cfg.Scheduler.Seed),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: cfg.Input.ClientName}),
	}
	if cfg.Logging.File != "" {
		base = append(base, contracts.WithLogFile(cfg.Logging.File))
	}
	e := New(append(base, opts...)...)

	for _, name := range cfg.PlayerNames() {
		if err := e.addConfiguredPlayer(name, cfg.Players[name]); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("player %q: %w", name, err)
		}
	}
	if cfg.Scheduler.TempoMaster != "" {
		if err := e.SetTempoMaster(cfg.Scheduler.TempoMaster); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) addConfiguredPlayer(name string, pc config.PlayerConfig) error {
	timing, err := corpus.ParseTiming(pc.Timing)
	if err != nil {
		return err
	}
	opts := []player.Option{player.WithTiming(timing)}
	if len(pc.MergeActions) > 0 {
		actions, err := merge.ParseList(pc.MergeActions)
		if err != nil {
			return err
		}
		opts = append(opts, player.WithMergeActions(actions...))
	}
	if len(pc.Selectors) > 0 {
		chain, err := selector.ParseChain(pc.Selectors, e.rng)
		if err != nil {
			return err
		}
		opts = append(opts, player.WithSelectors(chain))
	}
	if pc.History > 0 {
		opts = append(opts, player.WithHistory(pc.History))
	}

	out := e.outputTarget(pc.Output)
	mode := scheduler.ParseTriggerMode(pc.TriggerMode, e.logger)
	if err := e.newPlayer(name, out, mode, opts...); err != nil {
		return err
	}

	for _, path := range config.SortedPaths(pc.StreamViews) {
		sv := pc.StreamViews[path]
		if err := e.CreateStreamView(name, path, sv.Weight, sv.MergeActions...); err != nil {
			return err
		}
	}
	for _, path := range config.SortedPaths(pc.Atoms) {
		if err := e.CreateAtom(name, path, pc.Atoms[path]); err != nil {
			return err
		}
	}
	if pc.Corpus != "" {
		// the error is logged by the player and the player stays usable
		_ = e.ReadCorpus(name, pc.Corpus)
	}
	return nil
}

func (e *Engine) outputTarget(oc config.OutputConfig) contracts.Target {
	switch strings.ToLower(oc.Type) {
	case "smf":
		rec := target.NewFileRecorder(oc.Path, e.options.Tempo)
		e.addCloser(rec)
		return rec
	case "none":
		return target.Func(func(contracts.Output) error { return nil })
	default:
		return e.logTarget()
	}
}

func (e *Engine) logTarget() contracts.Target {
	return target.NewLog(e.logger)
}
