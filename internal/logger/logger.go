package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings to keep output consistent.
const (
	FieldRequestID  = "request_id"
	FieldRunID      = "run_id"
	FieldTraceID    = "trace_id"
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldURL        = "url"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldSize       = "size"
	FieldError      = "error"
	FieldCount      = "count"
	FieldAddress    = "address"
)

// Options selects the encoder and minimum level.
type Options struct {
	Level string // debug, info, warn, error
	JSON  bool
}

// New builds a sugared logger writing to stderr, so stdout stays free for
// command output.
func New(opts Options) (*zap.SugaredLogger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		config.ErrorOutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return nil, err
		}
		return zapLogger.Sugar(), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Component returns a child logger tagged with the component name.
func Component(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		log = Nop()
	}
	return log.With(FieldComponent, name)
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, err
	}
	return level, nil
}
