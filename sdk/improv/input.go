package improv

import (
	"context"

	"github.com/leandrodaf/improv/sdk/contracts"
)

// DefaultInputBuffer is the capacity of the channel between an input client and the engine.
const DefaultInputBuffer = 256

// Listen influences the node at path of player name with every note-on read from events.
// It returns when ctx is done or events is closed.
func (e *Engine) Listen(ctx context.Context, events <-chan contracts.MIDI, name, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.IsNoteOn() {
				continue
			}
			if err := e.InfluencePitch(name, path, int(ev.Note)); err != nil {
				e.logger.Warn("Live influence failed",
					e.logger.Field().String("player", name),
					e.logger.Field().Uint8("note", ev.Note),
					e.logger.Field().Error("error", err))
			}
		}
	}
}

// ListenInput connects client to device and listens to it in the background until ctx is
// done, after which the client is stopped.
func (e *Engine) ListenInput(ctx context.Context, client contracts.ClientMIDI, device int, name, path string) error {
	if _, err := e.player(name); err != nil {
		return err
	}
	if err := client.SelectDevice(device); err != nil {
		return err
	}

	events := make(chan contracts.MIDI, DefaultInputBuffer)
	client.StartCapture(events)
	go func() {
		_ = e.Listen(ctx, events, name, path)
		if err := client.Stop(); err != nil {
			e.logger.Error("Failed to stop MIDI input", e.logger.Field().Error("error", err))
		}
	}()
	e.logger.Info("Listening to live input",
		e.logger.Field().Int("device", device),
		e.logger.Field().String("player", name),
		e.logger.Field().String("path", path))
	return nil
}
