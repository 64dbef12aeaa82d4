package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"weapondetection/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to per-level files and stdout/stderr.
type Logger struct {
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	files  []*os.File
	logDir string
	mu     sync.Mutex
}

// NewLogger creates a Logger writing into cfg.LogDirectory and installs it as the zap global.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: cfg.LogDirectory}
	if err := l.setupLoggers(cfg.LogDevelopment); err != nil {
		l.closeFiles()
		return nil, err
	}
	zap.ReplaceGlobals(l.base)
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{base: base, sugar: base.Sugar()}
}

// setupLoggers builds one zap core per destination and tees them together.
func (l *Logger) setupLoggers(development bool) error {
	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.TimeKey = "timestamp"
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEncoder := fileEncoder
	consoleEncoder.EncodeLevel = zapcore.CapitalLevelEncoder
	if development {
		consoleEncoder = zap.NewDevelopmentEncoderConfig()
		consoleEncoder.TimeKey = "timestamp"
		consoleEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEncoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		return err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		return err
	}

	console := zapcore.NewConsoleEncoder(consoleEncoder)
	json := zapcore.NewJSONEncoder(fileEncoder)

	core := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.Lock(os.Stdout), levelRange(zapcore.InfoLevel, zapcore.WarnLevel)),
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), levelRange(zapcore.ErrorLevel, zapcore.FatalLevel)),
		zapcore.NewCore(json, zapcore.AddSync(infoFile), levelRange(zapcore.InfoLevel, zapcore.InfoLevel)),
		zapcore.NewCore(json, zapcore.AddSync(warningFile), levelRange(zapcore.WarnLevel, zapcore.WarnLevel)),
		zapcore.NewCore(json, zapcore.AddSync(errorFile), levelRange(zapcore.ErrorLevel, zapcore.FatalLevel)),
	)

	l.base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.base.Sugar()
	return nil
}

func levelRange(min, max zapcore.Level) zap.LevelEnablerFunc {
	return func(level zapcore.Level) bool {
		return level >= min && level <= max
	}
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Zap returns the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates one of the level log files.
func (l *Logger) CleanLogs(fileName string) error {
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file: %s", fileName)
	}
	if l.logDir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}

// Close flushes and closes the log files.
func (l *Logger) Close() {
	l.Sync()
	l.closeFiles()
}

func (l *Logger) closeFiles() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = nil
}
