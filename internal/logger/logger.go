package logger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Logger handles logging to both console and file
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *slog.Logger
}

// Config holds logger configuration
type Config struct {
	LogDir    string
	LogFile   string
	MaxSizeMB int
	ToConsole bool
	Level     string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// DefaultConfig returns default logging configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		LogDir:    filepath.Join(homeDir, ".proxyswitch", "logs"),
		LogFile:   "proxyswitch.log",
		MaxSizeMB: 10,
		ToConsole: true,
		Level:     "info",
	}
}

// ParseLevel maps debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new Logger instance and makes it the slog default
func New(cfg Config) (*Logger, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, cfg.LogFile)
	file, err := openLog(logPath)
	if err != nil {
		return nil, err
	}

	l := &Logger{file: file, path: logPath}
	level := ParseLevel(cfg.Level)

	handlers := fanout{slog.NewTextHandler(l, &slog.HandlerOptions{Level: level})}
	if cfg.ToConsole {
		console := cfg.Console
		noColor := true
		if console == nil {
			console = os.Stderr
			noColor = !term.IsTerminal(int(os.Stderr.Fd()))
		}
		handlers = append(handlers, tint.NewHandler(console, &tint.Options{
			NoColor:    noColor,
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}

	l.logger = slog.New(handlers)
	slog.SetDefault(l.logger)
	return l, nil
}

func openLog(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// Path returns the current log file.
func (l *Logger) Path() string {
	return l.path
}

// Write sends p to the current log file. It lets rotation swap the file
// underneath the handler.
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// GetLogPath returns the path to the log file
func GetLogPath() string {
	cfg := DefaultConfig()
	return filepath.Join(cfg.LogDir, cfg.LogFile)
}

// RotateIfNeeded rotates the log file if it exceeds max size
func (l *Logger) RotateIfNeeded(maxSizeMB int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	maxBytes := int64(maxSizeMB) * 1024 * 1024
	if info.Size() < maxBytes {
		return nil
	}

	l.file.Close()
	backupPath := l.path + "." + time.Now().Format("2006-01-02-150405")
	if err := os.Rename(l.path, backupPath); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := openLog(l.path)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = file
	return nil
}

// Tail returns the last n lines of the file at path.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, sc.Err()
}

// Follow copies lines appended to path after offset to w until ctx ends.
func Follow(ctx context.Context, path string, offset int64, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := io.Copy(w, f); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
