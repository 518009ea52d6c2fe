/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package logging enables setting custom logger implementation.
//
//	Basic Flow:
//	1) Initialize logger (optional, defaults to a zap console logger)
//	2) Create new logger for specific module
//	3) Call log info
package logging

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Level defines all available log levels for log messages.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

var levelNames = []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG"}

func (l Level) String() string {
	if l < CRITICAL || l > DEBUG {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// API is the logging interface exposed to module loggers.
type API interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Provider is a factory for module loggers.
type Provider interface {
	GetLogger(module string) API
}

// Logger basic implementation of the API interface
type Logger struct {
	instance API // access only via Logger.logger()
	module   string
	once     sync.Once
}

// logger factory singleton - access only via loggerProvider()
var loggerProviderInstance Provider
var loggerProviderOnce sync.Once

const (
	loggerNotInitializedMsg = "Default logger initialized (please call logging.Initialize if you wish to use a custom logger)"
	loggerModule            = "assettransfer/common"
)

// NewLogger creates and returns a Logger object based on the module name.
func NewLogger(module string) *Logger {
	// note: the underlying logger instance is lazy initialized on first use
	return &Logger{module: module}
}

func loggerProvider() Provider {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = NewZapProvider(nil)
		loggerProviderInstance.GetLogger(loggerModule).Debug(loggerNotInitializedMsg)
	})
	return loggerProviderInstance
}

// Initialize sets new logger provider which takes over logging operations.
// It must be called before the first log output, later calls are ignored.
func Initialize(p Provider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = p
		loggerProviderInstance.GetLogger(loggerModule).Debug("Logger provider initialized")
	})
}

// SetLevel sets the log level for the given module. An empty module sets the default level.
func SetLevel(module string, level Level) {
	moduleLevels.set(module, level)
}

// GetLevel returns the log level of the given module.
func GetLevel(module string) Level {
	return moduleLevels.get(module)
}

// IsEnabledFor checks if the given log level is enabled for the given module.
func IsEnabledFor(module string, level Level) bool {
	return level <= GetLevel(module)
}

// LogLevel returns the log level from a string representation.
func LogLevel(level string) (Level, error) {
	l := strings.ToUpper(strings.TrimSpace(level))
	if l == "WARN" {
		l = "WARNING"
	}
	for i, name := range levelNames {
		if name == l {
			return Level(i), nil
		}
	}
	return ERROR, errors.Errorf("logger: invalid log level [%s]", level)
}

// ApplySpec sets module levels from a spec such as "info" or
// "assettransfer/ledger=debug:warning". Entries without a module set the default.
func ApplySpec(spec string) error {
	for _, field := range strings.Split(spec, ":") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		module := ""
		lvl := field
		if i := strings.LastIndex(field, "="); i >= 0 {
			module, lvl = field[:i], field[i+1:]
		}
		level, err := LogLevel(lvl)
		if err != nil {
			return err
		}
		for _, m := range strings.Split(module, ",") {
			SetLevel(strings.TrimSpace(m), level)
		}
	}
	return nil
}

// Module returns the module name of the logger.
func (l *Logger) Module() string {
	return l.module
}

// Debug calls Debug function of underlying logger
func (l *Logger) Debug(args ...interface{}) {
	if IsEnabledFor(l.module, DEBUG) {
		l.logger().Debug(args...)
	}
}

// Debugf calls Debugf function of underlying logger
func (l *Logger) Debugf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, DEBUG) {
		l.logger().Debugf(format, args...)
	}
}

// Info calls Info function of underlying logger
func (l *Logger) Info(args ...interface{}) {
	if IsEnabledFor(l.module, INFO) {
		l.logger().Info(args...)
	}
}

// Infof calls Infof function of underlying logger
func (l *Logger) Infof(format string, args ...interface{}) {
	if IsEnabledFor(l.module, INFO) {
		l.logger().Infof(format, args...)
	}
}

// Warn calls Warn function of underlying logger
func (l *Logger) Warn(args ...interface{}) {
	if IsEnabledFor(l.module, WARNING) {
		l.logger().Warn(args...)
	}
}

// Warnf calls Warnf function of underlying logger
func (l *Logger) Warnf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, WARNING) {
		l.logger().Warnf(format, args...)
	}
}

// Error calls Error function of underlying logger
func (l *Logger) Error(args ...interface{}) {
	if IsEnabledFor(l.module, ERROR) {
		l.logger().Error(args...)
	}
}

// Errorf calls Errorf function of underlying logger
func (l *Logger) Errorf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, ERROR) {
		l.logger().Errorf(format, args...)
	}
}

// Fatal calls Fatal function of underlying logger
func (l *Logger) Fatal(args ...interface{}) {
	l.logger().Fatal(args...)
}

// Fatalf calls Fatalf function of underlying logger
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger().Fatalf(format, args...)
}

func (l *Logger) logger() API {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})
	return l.instance
}
