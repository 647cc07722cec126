package logging

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
)

// Logger is the process logger. Components log through named children.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Options carries process metadata stamped on every entry.
type Options struct {
	Service string
	Version string
	// Output receives entries; stdout when nil.
	Output zapcore.WriteSyncer
}

// New builds the logger from the LOG_* settings: JSON in production,
// colored console with error stack traces in development.
func New(cfg config.LogConfig, opts Options) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	out := opts.Output
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}

	zopts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	var enc zapcore.Encoder
	if cfg.Development {
		enc = zapcore.NewConsoleEncoder(consoleEncoding())
		zopts = append(zopts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		enc = zapcore.NewJSONEncoder(jsonEncoding())
	}

	var base []zap.Field
	if opts.Service != "" {
		base = append(base, zap.String("service", opts.Service))
	}
	if opts.Version != "" {
		base = append(base, zap.String("version", opts.Version))
	}

	log := zap.New(zapcore.NewCore(enc, out, level), zopts...).With(base...)
	return &Logger{Logger: log, level: level}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// Component returns a child logger tagged with the subsystem name.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name).With(zap.String("component", name))
}

// SetLevel changes the level of this logger and every child.
func (l *Logger) SetLevel(level string) error {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(parsed)
	return nil
}

// WithTrace returns log carrying the trace and span ids of ctx, or log
// itself when ctx is untraced.
func WithTrace(log *zap.Logger, ctx context.Context) *zap.Logger {
	fields := tracing.Fields(ctx)
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

func consoleEncoding() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}

func jsonEncoding() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}
