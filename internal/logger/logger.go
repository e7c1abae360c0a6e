package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Log file names, one per level. Debug output only goes to stdout.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debug      bool
	logDir     string
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger writing into logDir, creating the directory if needed.
// Debug entries are dropped unless debug is set.
func New(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir, debug: debug}

	writers := make(map[string]io.Writer, 3)
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, f)
		writers[name] = f
	}

	l.setupLoggers(
		os.Stdout,
		io.MultiWriter(os.Stdout, writers[InfoFile]),
		io.MultiWriter(os.Stdout, writers[WarningFile]),
		io.MultiWriter(os.Stderr, writers[ErrorFile]),
	)
	return l, nil
}

// NewDiscard returns a Logger that writes nowhere. Used by tests and tools.
func NewDiscard() *Logger {
	l := &Logger{}
	l.setupLoggers(io.Discard, io.Discard, io.Discard, io.Discard)
	return l
}

// setupLoggers initializes the per-level loggers.
func (l *Logger) setupLoggers(debug, info, warning, errw io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.debugLog = log.New(debug, "DEBUG   ", flags)
	l.infoLog = log.New(info, "INFO    ", flags)
	l.warningLog = log.New(warning, "WARNING ", flags)
	l.errorLog = log.New(errw, "ERROR   ", flags)
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Debug writes a formatted debug-level log entry when debug output is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Output(2, fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close closes the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
