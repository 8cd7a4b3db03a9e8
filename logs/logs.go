// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logs implements a subsystem-aware logging backend in the style of
// btcsuite's btclog: a Backend fans a formatted record out to any number of
// BackendWriters, and each subsystem holds its own Logger with an
// independently adjustable Level.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a logging priority. Lower values are more verbose.
type Level uint32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "UNK"
}

// LevelFromString maps a lower-case level name to a Level. The second
// return value is false for anything unrecognized, in which case the caller
// should fall back to a default rather than trust the zero value.
func LevelFromString(s string) (Level, bool) {
	switch s {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	}
	return LevelInfo, false
}

// BackendWriter pairs an io.Writer with the minimum Level it accepts, so a
// Backend can route, say, errors-and-above to a separate file from
// everything-including-trace.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter accepts every record regardless of level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter accepts only Error and Critical records.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// NewBackendWriter accepts records at or above minLevel.
func NewBackendWriter(w io.Writer, minLevel Level) *BackendWriter {
	return &BackendWriter{w: w, minLevel: minLevel}
}

// Backend multiplexes formatted log records out to its writers and mints
// per-subsystem Loggers that all funnel through it.
type Backend struct {
	writers []*BackendWriter
	mu      sync.Mutex
}

// NewBackend constructs a Backend fanning out to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

func (b *Backend) print(tag string, level Level, args ...interface{}) {
	b.write(tag, level, fmt.Sprint(args...))
}

func (b *Backend) printf(tag string, level Level, format string, args ...interface{}) {
	b.write(tag, level, fmt.Sprintf(format, args...))
}

func (b *Backend) write(tag string, level Level, msg string) {
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().Format("2006-01-02 15:04:05.000"), level, tag, msg)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.writers {
		if level >= w.minLevel {
			io.WriteString(w.w, line)
		}
	}
}

// Logger is a per-subsystem handle into a Backend with its own Level gate.
type Logger struct {
	tag     string
	backend *Backend
	level   uint32
}

// Logger mints a new subsystem Logger at LevelInfo, funneling through b.
func (b *Backend) Logger(tag string) Logger {
	return Logger{tag: tag, backend: b, level: uint32(LevelInfo)}
}

// SetLevel adjusts which records l forwards to its backend.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32(&l.level, uint32(level))
}

// Level returns l's current gate.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.level))
}

func (l Logger) enabled(level Level) bool {
	return level >= Level(atomic.LoadUint32(&l.level))
}

func (l Logger) Trace(args ...interface{}) {
	if l.enabled(LevelTrace) {
		l.backend.print(l.tag, LevelTrace, args...)
	}
}
func (l Logger) Tracef(format string, args ...interface{}) {
	if l.enabled(LevelTrace) {
		l.backend.printf(l.tag, LevelTrace, format, args...)
	}
}
func (l Logger) Debug(args ...interface{}) {
	if l.enabled(LevelDebug) {
		l.backend.print(l.tag, LevelDebug, args...)
	}
}
func (l Logger) Debugf(format string, args ...interface{}) {
	if l.enabled(LevelDebug) {
		l.backend.printf(l.tag, LevelDebug, format, args...)
	}
}
func (l Logger) Info(args ...interface{}) {
	if l.enabled(LevelInfo) {
		l.backend.print(l.tag, LevelInfo, args...)
	}
}
func (l Logger) Infof(format string, args ...interface{}) {
	if l.enabled(LevelInfo) {
		l.backend.printf(l.tag, LevelInfo, format, args...)
	}
}
func (l Logger) Warn(args ...interface{}) {
	if l.enabled(LevelWarn) {
		l.backend.print(l.tag, LevelWarn, args...)
	}
}
func (l Logger) Warnf(format string, args ...interface{}) {
	if l.enabled(LevelWarn) {
		l.backend.printf(l.tag, LevelWarn, format, args...)
	}
}
func (l Logger) Error(args ...interface{}) {
	if l.enabled(LevelError) {
		l.backend.print(l.tag, LevelError, args...)
	}
}
func (l Logger) Errorf(format string, args ...interface{}) {
	if l.enabled(LevelError) {
		l.backend.printf(l.tag, LevelError, format, args...)
	}
}
func (l Logger) Critical(args ...interface{}) {
	if l.enabled(LevelCritical) {
		l.backend.print(l.tag, LevelCritical, args...)
	}
}
func (l Logger) Criticalf(format string, args ...interface{}) {
	if l.enabled(LevelCritical) {
		l.backend.printf(l.tag, LevelCritical, format, args...)
	}
}

// Backend returns the Backend l funnels through, so callers can flush it
// (e.g. on a panic handler's way out) without plumbing it separately.
func (l Logger) Backend() *Backend {
	return l.backend
}

// Close flushes and releases any io.Closer writers b funnels to. Writers
// that don't implement io.Closer (like os.Stdout) are left alone.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, w := range b.writers {
		if c, ok := w.w.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Disabled is a Logger that discards everything; packages use it as their
// zero-value default before a real backend is wired in by InitLogRotators.
var Disabled = Logger{backend: NewBackend([]*BackendWriter{NewBackendWriter(os.Stdout, LevelOff)})}
