package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// FileLogger writes logfmt lines to a run log. It never exits the process on
// Fatal; the console backend owns termination.
type FileLogger struct {
	logger *log.Logger
	closer io.Closer
	mu     sync.Mutex
}

// FileLoggerParams configures a FileLogger.
type FileLoggerParams struct {
	Path  string
	Debug bool
}

// NewFileLogger opens (or creates) the log file in append mode.
func NewFileLogger(params FileLoggerParams) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(params.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(params.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newFileLogger(f, f, params.Debug), nil
}

func newFileLogger(w io.Writer, c io.Closer, debug bool) *FileLogger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return &FileLogger{
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           level,
			Formatter:       log.LogfmtFormatter,
		}),
		closer: c,
	}
}

// Close flushes nothing and closes the underlying file.
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

func (f *FileLogger) Log(message string, keyvals ...any) {
	f.logger.Print(message, keyvals...)
}

func (f *FileLogger) Info(message string, keyvals ...any) {
	f.logger.Info(message, keyvals...)
}

func (f *FileLogger) Warn(message string, keyvals ...any) {
	f.logger.Warn(message, keyvals...)
}

func (f *FileLogger) Error(message string, keyvals ...any) {
	f.logger.Error(message, keyvals...)
}

func (f *FileLogger) Debug(message string, keyvals ...any) {
	f.logger.Debug(message, keyvals...)
}

// Fatal is recorded at ERROR level.
func (f *FileLogger) Fatal(message string, keyvals ...any) {
	f.logger.Error(message, keyvals...)
}
