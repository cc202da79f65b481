package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string // debug, info, warn, error; unknown values mean info
	OutputPath string // stdout, stderr or a file path
	Format     string // json or console
}

// NewLogger builds the zap logger shared by every component.
// JSON output is meant for deployments, console output for a terminal.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	sink, err := logSink(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(logEncoder(cfg.Format), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func logEncoder(format string) zapcore.Encoder {
	if format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func logSink(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}
