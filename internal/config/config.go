// Package config handles engine configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leandrodaf/improv/internal/corpus"
	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/internal/merge"
	"github.com/leandrodaf/improv/internal/selector"
	"github.com/leandrodaf/improv/internal/transform"
	"github.com/leandrodaf/improv/sdk/contracts"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Scheduler SchedulerConfig         `yaml:"scheduler"`
	Logging   LoggingConfig           `yaml:"logging"`
	Input     InputConfig             `yaml:"input"`
	Players   map[string]PlayerConfig `yaml:"players"`
}

// SchedulerConfig holds clock settings.
type SchedulerConfig struct {
	Tempo          float64       `yaml:"tempo"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	TriggerPretime float64       `yaml:"trigger_pretime"`
	TempoMaster    string        `yaml:"tempo_master"`
	Seed           uint64        `yaml:"seed"`
}

// LoggingConfig holds logger settings. An empty File logs to stderr.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// InputConfig routes a live MIDI device into a player.
type InputConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Device     int    `yaml:"device"`
	ClientName string `yaml:"client_name"`
	Player     string `yaml:"player"`
	Path       string `yaml:"path"`
}

// PlayerConfig describes one player. StreamViews and Atoms are keyed by path.
type PlayerConfig struct {
	Corpus       string                      `yaml:"corpus"`
	Timing       string                      `yaml:"timing"`
	TriggerMode  string                      `yaml:"trigger_mode"`
	MergeActions []string                    `yaml:"merge_actions"`
	Selectors    []string                    `yaml:"selectors"`
	History      int                         `yaml:"history"`
	StreamViews  map[string]StreamViewConfig `yaml:"streamviews"`
	Atoms        map[string]AtomConfig       `yaml:"atoms"`
	Output       OutputConfig                `yaml:"output"`
}

// StreamViewConfig holds streamview settings.
type StreamViewConfig struct {
	Weight       float64  `yaml:"weight"`
	MergeActions []string `yaml:"merge_actions"`
}

// AtomConfig holds atom settings. Zero values select the defaults.
type AtomConfig struct {
	Weight         float64  `yaml:"weight"`
	Label          string   `yaml:"label"`
	Activity       string   `yaml:"activity"`
	Memory         string   `yaml:"memory"`
	SelfInfluenced bool     `yaml:"self_influenced"`
	Transforms     []string `yaml:"transforms"`
	NGramSize      int      `yaml:"ngram_size"`
	Tau            float64  `yaml:"tau"`
	Extinction     float64  `yaml:"extinction"`
}

// OutputConfig selects where a player's primitives go: "log", "smf" (Path required) or "none".
type OutputConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Default returns the default configuration: one automatic player with a melodic atom.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Tempo:        120,
			TickInterval: time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Input: InputConfig{
			ClientName: "improv",
			Player:     "player1",
		},
		Players: map[string]PlayerConfig{
			"player1": {
				TriggerMode:  "automatic",
				MergeActions: []string{"distance", "phase", "nextstate"},
				Selectors:    []string{"max", "default"},
				StreamViews: map[string]StreamViewConfig{
					"melody": {Weight: 1},
				},
				Atoms: map[string]AtomConfig{
					"melody:pitch": {
						Weight:     1,
						Label:      "melodic",
						Activity:   "classic",
						Memory:     "ngram",
						Transforms: []string{"identity"},
						NGramSize:  3,
					},
				},
				Output: OutputConfig{Type: "log"},
			},
		},
	}
}

// Load loads configuration from a file over the defaults. Players given in the file
// replace the default player.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	cfg.Players = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Players == nil {
		cfg.Players = Default().Players
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default if the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseLogLevel maps a level name to a contracts.LogLevel.
func ParseLogLevel(s string) (contracts.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return contracts.DebugLevel, nil
	case "", "info":
		return contracts.InfoLevel, nil
	case "warn", "warning":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	case "fatal":
		return contracts.FatalLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var err error
	if c.Scheduler.Tempo <= 0 {
		err = multierr.Append(err, fmt.Errorf("scheduler.tempo must be positive, got %v", c.Scheduler.Tempo))
	}
	if c.Scheduler.TickInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("scheduler.tick_interval must not be negative"))
	}
	if c.Scheduler.TriggerPretime < 0 {
		err = multierr.Append(err, fmt.Errorf("scheduler.trigger_pretime must not be negative"))
	}
	if m := c.Scheduler.TempoMaster; m != "" {
		if _, ok := c.Players[m]; !ok {
			err = multierr.Append(err, fmt.Errorf("scheduler.tempo_master: unknown player %q", m))
		}
	}
	if _, e := ParseLogLevel(c.Logging.Level); e != nil {
		err = multierr.Append(err, fmt.Errorf("logging.level: %w", e))
	}
	if c.Input.Enabled {
		if _, ok := c.Players[c.Input.Player]; !ok {
			err = multierr.Append(err, fmt.Errorf("input.player: unknown player %q", c.Input.Player))
		}
	}
	for _, name := range c.PlayerNames() {
		err = multierr.Append(err, c.Players[name].validate(name))
	}
	return err
}

// PlayerNames returns the configured players in sorted order.
func (c *Config) PlayerNames() []string {
	names := make([]string, 0, len(c.Players))
	for n := range c.Players {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p PlayerConfig) validate(name string) error {
	var err error
	wrap := func(field string, e error) {
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("players.%s.%s: %w", name, field, e))
		}
	}

	_, e := corpus.ParseTiming(p.Timing)
	wrap("timing", e)
	if len(p.MergeActions) > 0 {
		_, e = merge.ParseList(p.MergeActions)
		wrap("merge_actions", e)
	}
	if len(p.Selectors) > 0 {
		_, e = selector.ParseChain(p.Selectors, nil)
		wrap("selectors", e)
	}

	for _, path := range SortedPaths(p.StreamViews) {
		sv := p.StreamViews[path]
		if sv.Weight < 0 {
			wrap("streamviews."+path, fmt.Errorf("negative weight"))
		}
		_, e = merge.ParseList(sv.MergeActions)
		wrap("streamviews."+path, e)
		if parent := Parent(path); parent != "" {
			if _, ok := p.StreamViews[parent]; !ok {
				wrap("streamviews."+path, fmt.Errorf("parent streamview %q is not defined", parent))
			}
		}
	}
	for _, path := range SortedPaths(p.Atoms) {
		a := p.Atoms[path]
		parent := Parent(path)
		if parent == "" {
			wrap("atoms."+path, fmt.Errorf("atoms must be created inside a streamview"))
		} else if _, ok := p.StreamViews[parent]; !ok {
			wrap("atoms."+path, fmt.Errorf("parent streamview %q is not defined", parent))
		}
		if a.Label != "" {
			_, e = label.ParseKind(a.Label)
			wrap("atoms."+path+".label", e)
		}
		if len(a.Transforms) > 0 {
			_, e = transform.Parse(a.Transforms)
			wrap("atoms."+path+".transforms", e)
		}
		if a.Weight < 0 || a.NGramSize < 0 || a.Tau < 0 || a.Extinction < 0 {
			wrap("atoms."+path, fmt.Errorf("weight, ngram_size, tau and extinction must not be negative"))
		}
	}

	switch strings.ToLower(p.Output.Type) {
	case "", "log", "none":
	case "smf":
		if p.Output.Path == "" {
			wrap("output.path", fmt.Errorf("required for smf output"))
		}
	default:
		wrap("output.type", fmt.Errorf("unknown output %q", p.Output.Type))
	}
	return err
}

// SortedPaths orders node paths so that every parent precedes its children.
func SortedPaths[V any](nodes map[string]V) []string {
	paths := make([]string, 0, len(nodes))
	for p := range nodes {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], ":"), strings.Count(paths[j], ":")
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
	return paths
}

// Parent returns the path of the streamview containing path, or "" at the top level.
func Parent(path string) string {
	i := strings.LastIndex(path, ":")
	if i < 0 {
		return ""
	}
	return path[:i]
}
