package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leandrodaf/improv/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCoreLogger_FieldsAndLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewCoreLogger(core)

	log.Debug("tick", log.Field().Float64("beat", 1.5), log.Field().Error("error", errors.New("boom")))
	log.SetLevel(contracts.WarnLevel)
	log.Info("hidden")
	log.Warn("shown", log.Field().String("player", "p1"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["beat"] != 1.5 {
		t.Errorf("expected beat field 1.5, got %v", ctx["beat"])
	}
	if ctx["error"] != "boom" {
		t.Errorf("expected error field boom, got %v", ctx["error"])
	}
	if entries[1].Message != "shown" || entries[1].ContextMap()["player"] != "p1" {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestZapLogger_FileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	log := NewZapLogger()
	log.SetDestination(contracts.FileLog, path)
	log.Info("written to file", log.Field().Int("state", 3))
	log.SetDestination(contracts.ConsoleLog)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") || !strings.Contains(string(data), `"state":3`) {
		t.Errorf("unexpected log file contents: %s", data)
	}
}

func TestNopLogger_DropsEverything(t *testing.T) {
	log := NewNopLogger()
	log.SetLevel(contracts.DebugLevel)
	log.Info("nothing", log.Field().Bool("ok", true))
}
