package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}

// StringToLogLevel translates a string representation of a log level to its enum value
func StringToLogLevel(level string) (int, error) {
	switch strings.ToUpper(level) {
	case "TRACE":
		return TraceLevel, nil
	case "DEBUG":
		return DebugLevel, nil
	case "INFO":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	case "FATAL":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// ZapLevel translates a log level enum to its zap equivalent. zap has no trace level, so
// trace messages are logged at debug level.
func ZapLevel(level int) zapcore.Level {
	switch level {
	case TraceLevel, DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// Config configures the logger of a generation job
type Config struct {
	Level       int    // Level is the minimum level which will be logged
	Encoding    string // Encoding is either "console" or "json"
	Development bool
}

// New builds a zap Logger from a Config
func New(conf Config) (*zap.Logger, error) {
	var zconf zap.Config
	if conf.Development {
		zconf = zap.NewDevelopmentConfig()
	} else {
		zconf = zap.NewProductionConfig()
	}
	zconf.Level = zap.NewAtomicLevelAt(ZapLevel(conf.Level))
	if conf.Encoding != "" {
		zconf.Encoding = conf.Encoding
	}
	zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zconf.Build()
	if err != nil {
		return nil, fmt.Errorf("unable to build logger: %w", err)
	}
	return logger.Named("atlasgen"), nil
}
