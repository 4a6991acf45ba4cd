package logger

import (
	"sync"
	"time"

	"github.com/leandrodaf/improv/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the wrapper frames (public method + log) from zap's caller annotation.
const callerSkip = 2

// ZapLogger implements contracts.Logger on top of a zap.Logger.
type ZapLogger struct {
	mu     sync.RWMutex
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger creates a production zap logger writing JSON to stderr at info level.
func NewZapLogger() contracts.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z := &ZapLogger{level: level}
	z.logger = z.build("stderr")
	return z
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() contracts.Logger {
	return &ZapLogger{logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// NewCoreLogger wraps an arbitrary zap core, e.g. zaptest/observer in tests.
func NewCoreLogger(core zapcore.Core) contracts.Logger {
	return &ZapLogger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip)),
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

func (z *ZapLogger) build(path string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = z.level
	cfg.OutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
}

// Field returns an empty field builder.
func (z *ZapLogger) Field() contracts.Field {
	return &zapField{}
}

// SetLevel sets the minimum level that reaches the output.
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

// SetDestination switches the output between stderr and a file.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) {
	path := "stderr"
	if dest == contracts.FileLog && len(filePath) > 0 && filePath[0] != "" {
		path = filePath[0]
	}
	next := z.build(path)

	z.mu.Lock()
	prev := z.logger
	z.logger = next
	z.mu.Unlock()
	_ = prev.Sync()
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	z.mu.RLock()
	logger := z.logger
	z.mu.RUnlock()

	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func toZapLevel(level contracts.LogLevel) zapcore.Level {
	switch level {
	case contracts.DebugLevel:
		return zapcore.DebugLevel
	case contracts.WarnLevel:
		return zapcore.WarnLevel
	case contracts.ErrorLevel:
		return zapcore.ErrorLevel
	case contracts.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []contracts.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(*zapField); ok && f.set {
			out = append(out, f.field)
		}
	}
	return out
}

// zapField implements contracts.Field
type zapField struct {
	field zap.Field
	set   bool
}

func wrap(f zap.Field) contracts.Field {
	return &zapField{field: f, set: true}
}

func (f *zapField) Bool(key string, val bool) contracts.Field       { return wrap(zap.Bool(key, val)) }
func (f *zapField) Int(key string, val int) contracts.Field         { return wrap(zap.Int(key, val)) }
func (f *zapField) Float64(key string, val float64) contracts.Field { return wrap(zap.Float64(key, val)) }
func (f *zapField) String(key string, val string) contracts.Field   { return wrap(zap.String(key, val)) }
func (f *zapField) Time(key string, val time.Time) contracts.Field  { return wrap(zap.Time(key, val)) }
func (f *zapField) Int64(key string, val int64) contracts.Field     { return wrap(zap.Int64(key, val)) }
func (f *zapField) Uint64(key string, val uint64) contracts.Field   { return wrap(zap.Uint64(key, val)) }
func (f *zapField) Uint8(key string, val uint8) contracts.Field     { return wrap(zap.Uint8(key, val)) }

func (f *zapField) Error(key string, val error) contracts.Field {
	return wrap(zap.NamedError(key, val))
}
