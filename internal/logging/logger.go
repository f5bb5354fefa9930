package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"renit/internal/config"

	"github.com/rs/zerolog"
)

const (
	outputStdout = "stdout"
	outputStderr = "stderr"
	outputFile   = "file"
	// tee writes to stdout and the file
	outputTee = "tee"
)

// New builds the root logger from the logging section. Empty fields fall back
// to JSON lines at info level on stdout. The returned closer is non-nil only
// when a log file was opened.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Level)

	w, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	if normalize(cfg.Format) == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	base := ctx.
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

func parseLevel(raw string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(normalize(raw))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch mode := normalize(cfg.Output); mode {
	case outputStderr:
		return os.Stderr, nil, nil
	case outputFile, outputTee:
		file, err := openFile(cfg.FilePath, mode)
		if err != nil {
			return nil, nil, err
		}
		if mode == outputTee {
			return zerolog.MultiLevelWriter(os.Stdout, file), file, nil
		}
		return file, file, nil
	case "", outputStdout:
		return os.Stdout, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}
}

func openFile(path, mode string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("logging.output=%s requires logging.file_path", mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Component returns a child logger tagged with the component name.
// A nil parent yields a disabled logger.
func Component(parent *zerolog.Logger, name string) *zerolog.Logger {
	if parent == nil {
		nop := zerolog.Nop()
		return &nop
	}
	l := parent.With().Str("component", name).Logger()
	return &l
}
