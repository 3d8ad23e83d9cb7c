package core


import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)


type LogLevel uint8


const (
	LOG_SILENT LogLevel = 0
	LOG_FATAL  LogLevel = 1
	LOG_ERROR  LogLevel = 2
	LOG_WARN   LogLevel = 3
	LOG_INFO   LogLevel = 4
	LOG_DEBUG  LogLevel = 5
	LOG_TRACE  LogLevel = 6
)


type Logger interface {
	// Log a message with a printf format for different log levels.
	//
	Fatalf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})

	// Return a new logger with the given `name` appended to this logger
	// current name.
	//
	Extend(string) Logger
}


func ParseLogLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return LOG_SILENT, nil
	case "fatal":
		return LOG_FATAL, nil
	case "error":
		return LOG_ERROR, nil
	case "warn", "warning":
		return LOG_WARN, nil
	case "info":
		return LOG_INFO, nil
	case "debug":
		return LOG_DEBUG, nil
	case "trace":
		return LOG_TRACE, nil
	default:
		return LOG_SILENT, fmt.Errorf("unknown log level '%s'", name)
	}
}


type noLogger struct {
}

func NewNopLogger() Logger {
	return &noLogger{}
}

func (this *noLogger) Fatalf(string, ...interface{}) {}
func (this *noLogger) Errorf(string, ...interface{}) {}
func (this *noLogger) Warnf(string, ...interface{}) {}
func (this *noLogger) Infof(string, ...interface{}) {}
func (this *noLogger) Debugf(string, ...interface{}) {}
func (this *noLogger) Tracef(string, ...interface{}) {}
func (this *noLogger) Extend(string) Logger { return this }


// A `Logger` writing through zap.
// Zap has no level below debug so trace messages go out at debug level
// with a `trace` field, and only when this logger level allows them.
//
type zapLogger struct {
	sugar  *zap.SugaredLogger
	level  LogLevel
}

func NewZapLogger(name string, level LogLevel) (Logger, error) {
	var config zap.Config
	var logger *zap.Logger
	var err error

	if level == LOG_SILENT {
		return NewNopLogger(), nil
	}

	config = zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zapLevel(level))
	config.OutputPaths = []string{"stderr"}

	logger, err = config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if name != "" {
		logger = logger.Named(name)
	}

	return NewZapLoggerFrom(logger, level), nil
}

func NewZapLoggerFrom(logger *zap.Logger, level LogLevel) Logger {
	return &zapLogger{
		sugar: logger.Sugar(),
		level: level,
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LOG_FATAL, LOG_ERROR:
		return zapcore.ErrorLevel
	case LOG_WARN:
		return zapcore.WarnLevel
	case LOG_INFO:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func (this *zapLogger) Fatalf(format string, args ...interface{}) {
	if this.level >= LOG_FATAL {
		// The driver decides itself when to exit, never zap.
		this.sugar.With("fatal", true).Errorf(format, args...)
	}
}

func (this *zapLogger) Errorf(format string, args ...interface{}) {
	if this.level >= LOG_ERROR {
		this.sugar.Errorf(format, args...)
	}
}

func (this *zapLogger) Warnf(format string, args ...interface{}) {
	if this.level >= LOG_WARN {
		this.sugar.Warnf(format, args...)
	}
}

func (this *zapLogger) Infof(format string, args ...interface{}) {
	if this.level >= LOG_INFO {
		this.sugar.Infof(format, args...)
	}
}

func (this *zapLogger) Debugf(format string, args ...interface{}) {
	if this.level >= LOG_DEBUG {
		this.sugar.Debugf(format, args...)
	}
}

func (this *zapLogger) Tracef(format string, args ...interface{}) {
	if this.level >= LOG_TRACE {
		this.sugar.With("trace", true).Debugf(format, args...)
	}
}

func (this *zapLogger) Extend(name string) Logger {
	return &zapLogger{
		sugar: this.sugar.Named(name),
		level: this.level,
	}
}
