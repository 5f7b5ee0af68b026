// Package logging builds the zap logger shared by the CLI and TUI.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvLogFile = "EXPENSECTL_LOG_FILE"

type Options struct {
	// File receives JSON logs. Empty falls back to EXPENSECTL_LOG_FILE.
	File string
	// Stderr adds a console core on stderr; stdout is reserved for command output.
	Stderr io.Writer
	Level  string
}

// New returns a logger and a closer for its file. With no file and no stderr
// sink the logger is a no-op so scripted runs stay quiet.
func New(opts Options) (*zap.Logger, func() error, error) {
	noop := func() error { return nil }
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil || strings.TrimSpace(opts.Level) == "" {
		lvl = zapcore.InfoLevel
	}

	file := strings.TrimSpace(opts.File)
	if file == "" {
		file = strings.TrimSpace(os.Getenv(EnvLogFile))
	}

	var cores []zapcore.Core
	closer := noop
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, noop, err
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noop, err
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), lvl))
		closer = f.Close
	}
	if opts.Stderr != nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(opts.Stderr), lvl))
	}
	if len(cores) == 0 {
		return zap.NewNop(), noop, nil
	}
	return zap.New(zapcore.NewTee(cores...)), closer, nil
}
