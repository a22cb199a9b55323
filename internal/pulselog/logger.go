// Package pulselog provides the centralized logging configuration shared by
// the pulsepoint CLI and its supporting commands. Engine packages under
// internal/engine never reach into this package directly; they accept a
// *zap.Logger from the caller instead.
package pulselog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	pulseLogger *zap.Logger
	sugar       *zap.SugaredLogger
)

// Config holds the logging configuration.
type Config struct {
	Level       string
	OutputPath  string
	MaxSize     int // megabytes
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
	Development bool
	EnableJSON  bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Level:       "info",
		OutputPath:  filepath.Join(home, ".pulsepoint", "logs", "pulsepoint.log"),
		MaxSize:     100,
		MaxBackups:  5,
		MaxAge:      30,
		Compress:    true,
		Development: false,
		EnableJSON:  false,
	}
}

// Initialize sets up the global logger with the given configuration.
func Initialize(cfg *Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch {
	case cfg.Development && !cfg.EnableJSON:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case cfg.EnableJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logDir := filepath.Dir(cfg.OutputPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var writers []zapcore.WriteSyncer
	writers = append(writers, zapcore.AddSync(fileWriter))
	if cfg.Development {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(writers...),
		zap.NewAtomicLevelAt(level),
	)

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	pulseLogger = zap.New(core, opts...)
	sugar = pulseLogger.Sugar()
	zap.ReplaceGlobals(pulseLogger)

	return nil
}

// Get returns the global logger instance, initializing it with defaults on
// first use.
func Get() *zap.Logger {
	if pulseLogger == nil {
		Initialize(DefaultConfig())
	}
	return pulseLogger
}

// GetSugar returns the sugared logger for convenient call sites.
func GetSugar() *zap.SugaredLogger {
	if sugar == nil {
		Get()
	}
	return sugar
}

// Sync flushes any buffered log entries.
func Sync() error {
	if pulseLogger != nil {
		return pulseLogger.Sync()
	}
	return nil
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

// Info logs an info message.
func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

// Error logs an error message.
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// WithCorrelationID returns a logger tagged with a correlation ID, used to
// thread one CLI invocation's log lines together.
func WithCorrelationID(correlationID string) *zap.Logger {
	return Get().With(zap.String("correlation_id", correlationID))
}
