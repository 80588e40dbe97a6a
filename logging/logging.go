// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package logging is the small structured-logging facade the runtime
// logs through: a Level type, a Logger interface, and a StandardLogger
// backed by logrus.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Level is a logging severity, ordered least to most severe.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is the leveled logging interface with structured fields that
// StandardLogger and NoOpLogger implement. The server accept loop and
// each query session log through the *logrus.Entry returned by
// StandardLogger.Entry rather than through Logger.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	WithFields(fields map[string]interface{}) Logger
	SetLevel(Level)
	GetLevel() Level
}

// StandardLogger is the default Logger implementation, backed by a
// *logrus.Logger.
type StandardLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// New returns a StandardLogger writing to stderr at Info level with
// logrus's default text formatter.
func New() *StandardLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &StandardLogger{logger: l}
}

// NewFromLogrus wraps an already-configured *logrus.Logger (e.g. one
// whose formatter or output was set by internal/logging.GetFormatter).
func NewFromLogrus(l *logrus.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

func (s *StandardLogger) entry() *logrus.Entry {
	return s.logger.WithFields(s.fields)
}

func (s *StandardLogger) Debug(format string, a ...interface{}) { s.entry().Debugf(format, a...) }
func (s *StandardLogger) Info(format string, a ...interface{})  { s.entry().Infof(format, a...) }
func (s *StandardLogger) Warn(format string, a ...interface{})  { s.entry().Warnf(format, a...) }
func (s *StandardLogger) Error(format string, a ...interface{}) { s.entry().Errorf(format, a...) }

// WithFields returns a derived Logger that attaches fields to every
// subsequent log line, merging with (and overriding) any fields already
// attached.
func (s *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(logrus.Fields, len(s.fields)+len(fields))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StandardLogger{logger: s.logger, fields: merged}
}

func (s *StandardLogger) SetLevel(l Level) { s.logger.SetLevel(l.logrusLevel()) }

func (s *StandardLogger) GetLevel() Level {
	switch s.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return Debug
	case logrus.WarnLevel:
		return Warn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return Error
	default:
		return Info
	}
}

// Entry exposes the underlying *logrus.Entry. runtime hands it to the TCP
// server, which derives each connection's Session logger from it, and
// cmd's run command uses it to set the formatter.
func (s *StandardLogger) Entry() *logrus.Entry { return s.entry() }

// NoOpLogger discards everything logged through it, used by tests and by
// any caller that does not want a Logger dependency wired in.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (*NoOpLogger) Debug(string, ...interface{}) {}
func (*NoOpLogger) Info(string, ...interface{})  {}
func (*NoOpLogger) Warn(string, ...interface{})  {}
func (*NoOpLogger) Error(string, ...interface{}) {}
func (n *NoOpLogger) WithFields(map[string]interface{}) Logger { return n }
func (*NoOpLogger) SetLevel(Level)                             {}
func (*NoOpLogger) GetLevel() Level                             { return Info }
