package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"proctor/internal/config"
)

// Logger provides leveled logging (info/warning/error) to stderr and optional log files.
// Stdout is reserved for machine-readable results.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	quiet      bool
	files      []*os.File
	mu         sync.Mutex
}

// NewLogger creates a Logger. When config.LogDirectory is set the directory is created
// and every level is also appended to its own file there.
func NewLogger(config *config.Config) (*Logger, error) {
	logger := &Logger{
		logDir: config.LogDirectory,
		quiet:  config.Quiet,
	}

	if logger.logDir != "" {
		if err := os.MkdirAll(logger.logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if err := logger.setupLoggers(os.Stderr); err != nil {
		logger.Close()
		return nil, err
	}
	return logger, nil
}

// New returns a file-less logger writing to w; used by tests and tools.
func New(w io.Writer, quiet bool) *Logger {
	logger := &Logger{quiet: quiet}
	logger.setupLoggers(w)
	return logger
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers(console io.Writer) error {
	infoWriter, err := l.writer(console, "info.log", l.quiet)
	if err != nil {
		return err
	}
	warningWriter, err := l.writer(console, "warning.log", l.quiet)
	if err != nil {
		return err
	}
	errorWriter, err := l.writer(console, "error.log", false)
	if err != nil {
		return err
	}

	l.infoLog = log.New(infoWriter, "INFO    ", log.Ldate|log.Ltime)
	l.warningLog = log.New(warningWriter, "WARNING ", log.Ldate|log.Ltime)
	l.errorLog = log.New(errorWriter, "ERROR   ", log.Ldate|log.Ltime)
	return nil
}

// writer combines the console (unless muted) with the level's log file (when enabled).
func (l *Logger) writer(console io.Writer, fileName string, muted bool) (io.Writer, error) {
	var writers []io.Writer
	if !muted {
		writers = append(writers, console)
	}
	if l.logDir != "" {
		file, err := l.openLogFile(filepath.Join(l.logDir, fileName))
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		return io.Discard, nil
	}
	return io.MultiWriter(writers...), nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry. Errors are never muted.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close releases the log files.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range l.files {
		file.Close()
	}
	l.files = nil
}
