// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats accepted by InitCLILogger.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// CLILogger is the logger commands write through. It is a no-op until
// InitCLILogger runs so packages and tests can use it unconditionally.
var CLILogger = zap.NewNop()

// InitCLILogger replaces CLILogger with a stderr logger at the given level.
// Stdout stays reserved for JSONL records.
func InitCLILogger(level, format string) error {
	logger, err := NewCLILogger(level, format, zapcore.Lock(os.Stderr))
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewCLILogger builds a logger writing to ws.
func NewCLILogger(level, format string, ws zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = "  "
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unsupported log format: %q (want %s or %s)", format, FormatConsole, FormatJSON)
	}

	return zap.New(zapcore.NewCore(enc, ws, lvl)), nil
}

// ParseLevel accepts zap level names; empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
