package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level enumerates supported logging granularities.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format enumerates supported logger output encodings.
type Format string

const (
	FormatStructured Format = "structured"
	FormatConsole    Format = "console"
)

var levelMapping = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

var formatEncoding = map[Format]string{
	FormatStructured: "json",
	FormatConsole:    "console",
}

// Factory builds zap.Logger instances with consistent configuration.
type Factory struct {
	isTerminal func() bool
}

// NewFactory constructs a factory that detects terminals on stderr.
func NewFactory() *Factory {
	return &Factory{
		isTerminal: func() bool {
			fd := os.Stderr.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}

// ResolveFormat returns the requested format, or console on a terminal and
// structured otherwise when none was requested.
func (f *Factory) ResolveFormat(requested string) Format {
	trimmed := Format(strings.ToLower(strings.TrimSpace(requested)))
	if trimmed != "" {
		return trimmed
	}
	if f.isTerminal != nil && f.isTerminal() {
		return FormatConsole
	}
	return FormatStructured
}

// Create produces a zap.Logger honoring the requested level and format.
func (f *Factory) Create(level, format string) (*zap.Logger, error) {
	requestedLevel := Level(strings.ToLower(strings.TrimSpace(level)))
	if requestedLevel == "" {
		requestedLevel = LevelInfo
	}
	zapLevel, ok := levelMapping[requestedLevel]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}
	resolved := f.ResolveFormat(format)
	encoding, ok := formatEncoding[resolved]
	if !ok {
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = encoding
	if resolved == FormatConsole {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Sync flushes logger, ignoring the errors stderr/stdout return on sync.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	err := logger.Sync()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOTSUP), errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENOTTY):
		return nil
	default:
		return err
	}
}
