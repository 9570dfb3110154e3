// Package logman configures the global logrus logger and optional file sinks.
package logman

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Setup sets the formatter ("json" or text) and level of the global logger.
// Unknown levels fall back to info.
func Setup(level, format string) {
	logrus.SetFormatter(formatter(format))

	switch strings.ToLower(level) {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info", "":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
		logrus.Warnf("Unknown log level %q, using info", level)
	}
}

func formatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// fileHook copies entries at or above a level into a file
type fileHook struct {
	mu        sync.Mutex
	file      *os.File
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	_, err = h.file.Write(line)
	return err
}

// Sink is a file attached to the global logger
type Sink struct {
	*logrus.Entry
	hook *fileHook
}

// Close closes the file. The hook stays registered and drops later entries.
func (s *Sink) Close() error {
	s.hook.mu.Lock()
	defer s.hook.mu.Unlock()
	if s.hook.file == nil {
		return nil
	}
	err := s.hook.file.Close()
	s.hook.file = nil
	return err
}

// Name is the file's base name without the .log extension
func Name(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".log")
}

// AddFile appends every entry at the current level or above to path.
// The returned entry carries a {name: true} field so lines written through it
// can be told apart in shared sinks.
func AddFile(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	hook := &fileHook{
		file: f,
		// no colors in files
		formatter: fileFormatter(logrus.StandardLogger().Formatter),
		levels:    logrus.AllLevels[:logrus.GetLevel()+1],
	}
	logrus.AddHook(hook)

	return &Sink{
		Entry: logrus.WithField(Name(path), true),
		hook:  hook,
	}, nil
}

func fileFormatter(current logrus.Formatter) logrus.Formatter {
	if _, ok := current.(*logrus.JSONFormatter); ok {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
}
