/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levels maintains log levels based on module
type levels struct {
	mutex  sync.RWMutex
	levels map[string]Level
}

var moduleLevels = &levels{}

func (l *levels) get(module string) Level {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	level, exists := l.levels[module]
	if !exists {
		level, exists = l.levels[""]
		// no configuration exists, default to info
		if !exists {
			level = INFO
		}
	}
	return level
}

func (l *levels) set(module string, level Level) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.levels == nil {
		l.levels = make(map[string]Level)
	}
	l.levels[module] = level
}

func (l *levels) reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.levels = nil
}

// ZapProvider creates module loggers backed by a shared zap core.
// Level filtering happens in Logger, so the core accepts everything.
type ZapProvider struct {
	base *zap.Logger
}

// NewZapProvider returns a provider writing console-encoded entries to w (stderr when nil).
func NewZapProvider(w io.Writer) *ZapProvider {
	if w == nil {
		w = os.Stderr
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.NameKey = "name"

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return &ZapProvider{
		base: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel)),
	}
}

// GetLogger returns a named logger for the module.
func (p *ZapProvider) GetLogger(module string) API {
	return &zapLogger{
		s: p.base.Named(module).WithOptions(zap.AddCallerSkip(2)).Sugar(),
	}
}

// Sync flushes any buffered entries.
func (p *ZapProvider) Sync() error {
	return p.base.Sync()
}

type zapLogger struct{ s *zap.SugaredLogger }

func (z *zapLogger) Debug(args ...interface{})                   { z.s.Debug(formatArgs(args)) }
func (z *zapLogger) Debugf(template string, args ...interface{}) { z.s.Debugf(template, args...) }
func (z *zapLogger) Info(args ...interface{})                    { z.s.Info(formatArgs(args)) }
func (z *zapLogger) Infof(template string, args ...interface{})  { z.s.Infof(template, args...) }
func (z *zapLogger) Warn(args ...interface{})                    { z.s.Warn(formatArgs(args)) }
func (z *zapLogger) Warnf(template string, args ...interface{})  { z.s.Warnf(template, args...) }
func (z *zapLogger) Error(args ...interface{})                   { z.s.Error(formatArgs(args)) }
func (z *zapLogger) Errorf(template string, args ...interface{}) { z.s.Errorf(template, args...) }
func (z *zapLogger) Fatal(args ...interface{})                   { z.s.Fatal(formatArgs(args)) }
func (z *zapLogger) Fatalf(template string, args ...interface{}) { z.s.Fatalf(template, args...) }

func formatArgs(args []interface{}) string { return strings.TrimSuffix(fmt.Sprintln(args...), "\n") }
