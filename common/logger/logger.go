package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process wide sugared logger
	Logger *zap.SugaredLogger
	// loggerMutex guards Logger replacement
	loggerMutex sync.RWMutex
)

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Config holds the logger configuration
type Config struct {
	Level       LogLevel `yaml:"level" json:"level"`
	Development bool     `yaml:"development" json:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding"` // "json" or "console"
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:       InfoLevel,
		Development: false,
		Encoding:    "console",
	}
}

// DevelopmentConfig returns a development logger configuration
func DevelopmentConfig() *Config {
	return &Config{
		Level:       DebugLevel,
		Development: true,
		Encoding:    "console",
	}
}

// New builds a sugared logger without touching the global instance
func New(config *Config) (*zap.SugaredLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var zapConfig zap.Config
	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level := config.Level
	if level == "" {
		level = InfoLevel
	}
	parsed, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)

	if config.Encoding != "" {
		zapConfig.Encoding = config.Encoding
	}

	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.CallerKey = "caller"
	zapConfig.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build zap logger")
	}
	return logger.Sugar(), nil
}

// Initialize initializes the global logger with the given configuration
func Initialize(config *Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// InitializeDevelopment initializes the global logger with development configuration
func InitializeDevelopment() error {
	return Initialize(DevelopmentConfig())
}

// SetLogger replaces the global logger. Tests use it with zap.NewNop().
func SetLogger(l *zap.SugaredLogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	Logger = l
}

// GetLogger returns the global logger instance, building a default one on first use
func GetLogger() *zap.SugaredLogger {
	loggerMutex.RLock()
	if Logger != nil {
		defer loggerMutex.RUnlock()
		return Logger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	// another goroutine may have won the race
	if Logger != nil {
		return Logger
	}

	logger, err := New(DefaultConfig())
	if err != nil {
		panic("Failed to initialize default logger: " + err.Error())
	}
	Logger = logger
	return Logger
}

// Debugf logs a formatted debug message
func Debugf(template string, args ...any) {
	GetLogger().Debugf(template, args...)
}

// Info logs an info message
func Info(args ...any) {
	GetLogger().Info(args...)
}

// Infof logs a formatted info message
func Infof(template string, args ...any) {
	GetLogger().Infof(template, args...)
}

// Warnf logs a formatted warning message
func Warnf(template string, args ...any) {
	GetLogger().Warnf(template, args...)
}

// Errorf logs a formatted error message
func Errorf(template string, args ...any) {
	GetLogger().Errorf(template, args...)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(template string, args ...any) {
	GetLogger().Fatalf(template, args...)
}

// With adds structured context to the logger
func With(args ...any) *zap.SugaredLogger {
	return GetLogger().With(args...)
}

// Named creates a named logger
func Named(name string) *zap.SugaredLogger {
	return GetLogger().Named(name)
}

// Sync flushes any buffered log entries
func Sync() error {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}

// WrapErrorf logs an error with formatted context and returns it wrapped
func WrapErrorf(err error, template string, args ...any) error {
	if err == nil {
		return nil
	}

	wrapped := errors.Wrapf(err, template, args...)
	GetLogger().With("error", err.Error()).Error(wrapped.Error())
	return wrapped
}

// LogIfError logs an error if it's not nil and returns the same error
func LogIfError(err error, template string, args ...any) error {
	if err == nil {
		return nil
	}
	GetLogger().With("error", err.Error()).Errorf(template, args...)
	return err
}
