// Package target provides destinations for the primitives produced by the scheduler.
package target

import (
	"errors"

	"github.com/leandrodaf/improv/sdk/contracts"
	"go.uber.org/multierr"
)

// ErrClosed is returned when sending to a closed target.
var ErrClosed = errors.New("target closed")

// Func adapts a function to contracts.Target.
type Func func(out contracts.Output) error

func (f Func) Send(out contracts.Output) error { return f(out) }

// Log writes every primitive to a logger at debug level, and state changes at info level.
type Log struct {
	logger contracts.Logger
}

func NewLog(log contracts.Logger) *Log {
	return &Log{logger: log}
}

func (l *Log) Send(out contracts.Output) error {
	f := l.logger.Field()
	switch out.Kind {
	case contracts.MidiOutput:
		l.logger.Debug("midi",
			f.String("player", out.Player),
			f.Float64("beat", out.Beat),
			f.Int("pitch", out.Pitch),
			f.Int("velocity", out.Velocity),
			f.Int("channel", out.Channel))
	case contracts.AudioOutput:
		l.logger.Debug("audio",
			f.String("player", out.Player),
			f.Float64("beat", out.Beat),
			f.Float64("onsetMs", out.OnsetMs),
			f.Float64("durationMs", out.DurationMs),
			f.Int("transposeCents", out.TransposeCents))
	case contracts.StateOutput:
		l.logger.Info("state",
			f.String("player", out.Player),
			f.Float64("beat", out.Beat),
			f.Int("index", out.StateIndex),
			f.Float64("position", out.Position),
			f.Float64("length", out.Length))
	}
	return nil
}

// Multi sends to every target and reports all failures.
type Multi []contracts.Target

func (m Multi) Send(out contracts.Output) error {
	var err error
	for _, t := range m {
		err = multierr.Append(err, t.Send(out))
	}
	return err
}
