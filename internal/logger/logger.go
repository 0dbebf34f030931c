// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap SugaredLogger and fans every line out to live subscribers
// (the log stream endpoint).
type Logger struct {
	sugar       *zap.SugaredLogger
	broadcast   chan string
	subscribers map[chan string]bool
	subMu       sync.RWMutex
	mu          sync.RWMutex
	closed      bool
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

// Init builds the process logger and installs it as the package default.
// mode is "prod" for JSON output, anything else for the console encoder.
// logFile is optional.
func Init(mode, logFile string) (*Logger, error) {
	l, err := NewLogger(mode, logFile)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return l, nil
}

// NewLogger creates a new logger instance
func NewLogger(mode, logFile string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return newWithSugar(zl.Sugar()), nil
}

func newWithSugar(sugar *zap.SugaredLogger) *Logger {
	l := &Logger{
		sugar:       sugar,
		broadcast:   make(chan string, 100),
		subscribers: make(map[chan string]bool),
	}
	go l.broadcastLoop()
	return l
}

// GetDefault returns the default logger. Before Init it falls back to a
// development logger on stdout.
func GetDefault() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger != nil {
		defaultLogger.mu.RLock()
		closed := defaultLogger.closed
		defaultLogger.mu.RUnlock()
		if !closed {
			return defaultLogger
		}
	}

	zl, err := zap.NewDevelopment(zap.AddCallerSkip(2))
	if err != nil {
		zl = zap.NewNop()
	}
	defaultLogger = newWithSugar(zl.Sugar())
	return defaultLogger
}

// Subscribe registers a client channel that receives every formatted log line.
// Returns nil if the logger is closed.
func (l *Logger) Subscribe() (<-chan string, chan string) {
	if l == nil {
		return nil, nil
	}

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, nil
	}

	clientChan := make(chan string, 10)

	l.subMu.Lock()
	l.subscribers[clientChan] = true
	l.subMu.Unlock()

	return clientChan, clientChan
}

// Unsubscribe removes a client channel from subscribers
func (l *Logger) Unsubscribe(ch chan string) {
	if ch == nil {
		return
	}

	l.subMu.Lock()
	defer l.subMu.Unlock()

	if l.subscribers[ch] {
		delete(l.subscribers, ch)
		close(ch)
	}
}

func (l *Logger) broadcastLoop() {
	defer func() {
		l.subMu.Lock()
		for ch := range l.subscribers {
			close(ch)
		}
		l.subscribers = make(map[chan string]bool)
		l.subMu.Unlock()
	}()

	for line := range l.broadcast {
		l.subMu.RLock()
		subscribers := make([]chan string, 0, len(l.subscribers))
		for ch := range l.subscribers {
			subscribers = append(subscribers, ch)
		}
		l.subMu.RUnlock()

		for _, ch := range subscribers {
			select {
			case ch <- line:
			default:
				// slow subscriber, drop the line
			}
		}
	}
}

func (l *Logger) logMessage(level zapcore.Level, format string, v ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}

	message := fmt.Sprintf(format, v...)
	switch level {
	case zapcore.DebugLevel:
		l.sugar.Debug(message)
	case zapcore.WarnLevel:
		l.sugar.Warn(message)
	case zapcore.ErrorLevel:
		l.sugar.Error(message)
	default:
		l.sugar.Info(message)
	}

	line := fmt.Sprintf("[%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05"), level.CapitalString(), message)
	select {
	case l.broadcast <- line:
	default:
	}
}

// Printf logs a message at INFO level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logMessage(zapcore.InfoLevel, format, v...)
}

// Errorf logs a message at ERROR level
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logMessage(zapcore.ErrorLevel, format, v...)
}

// Warnf logs a message at WARN level
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logMessage(zapcore.WarnLevel, format, v...)
}

// Debugf logs a message at DEBUG level
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logMessage(zapcore.DebugLevel, format, v...)
}

// Fatalf logs and exits.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.SugaredLogger {
	return l.sugar
}

// Close flushes zap and stops broadcasting.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.broadcast)

	// Sync on stdout returns EINVAL on some platforms.
	_ = l.sugar.Sync()
	return nil
}

// Package-level convenience functions
func Printf(format string, v ...interface{}) {
	GetDefault().Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	GetDefault().Errorf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	GetDefault().Warnf(format, v...)
}

func Debugf(format string, v ...interface{}) {
	GetDefault().Debugf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	GetDefault().Fatalf(format, v...)
}
