package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/improv/internal/logger"
	"github.com/leandrodaf/improv/sdk/contracts"
	"github.com/leandrodaf/improv/sdk/improv"
	"github.com/leandrodaf/improv/sdk/midi"
)

func main() {
	configPath := flag.String("config", "improv.yaml", "engine configuration file")
	flag.Parse()

	log := logger.NewZapLogger()

	cfg, err := improv.LoadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", log.Field().Error("error", err))
		os.Exit(1)
	}

	engine, err := improv.FromConfig(cfg, contracts.WithLogger(log))
	if err != nil {
		log.Error("Failed to build engine", log.Field().Error("error", err))
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Input.Enabled {
		client, err := midi.NewMIDIClient(
			contracts.WithLogger(log),
			contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: cfg.Input.ClientName}),
			contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
				Commands: []contracts.MIDICommand{contracts.NoteOn},
			}),
		)
		if err != nil {
			log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
			return
		}
		devices, err := client.ListDevices()
		if err != nil {
			log.Error("No MIDI devices found", log.Field().Error("error", err))
			return
		}
		fmt.Println("Available MIDI devices:", devices)

		if err := engine.ListenInput(ctx, client, cfg.Input.Device, cfg.Input.Player, cfg.Input.Path); err != nil {
			log.Error("Failed to listen to MIDI input", log.Field().Error("error", err))
			return
		}
	}

	if err := engine.Start(); err != nil {
		log.Warn("Some players could not start", log.Field().Error("error", err))
	}
	fmt.Println("Improvising... Press Ctrl+C to exit.")
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Engine stopped", log.Field().Error("error", err))
	}
}
