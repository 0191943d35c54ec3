// Package monitoring provides the process-wide diagnostic log streams.
//
// Three streams are kept separate so that operators can route them
// independently:
//   - ops: actionable warnings, errors and lifecycle events
//   - diag: per-call diagnostics useful when tuning thresholds
//   - trace: per-polygon and per-peak detail
//
// A nil writer disables a stream. By default only ops is enabled and
// writes to stderr.
package monitoring

import (
	"io"
	"log"
	"os"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   = newLogger("[planemesh] ", os.Stderr)
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[planemesh] ", w.Ops)
	diagLogger = newLogger("[planemesh] ", w.Diag)
	traceLogger = newLogger("[planemesh] ", w.Trace)
}

// SetVerbosity enables streams on w by level: 0 ops only, 1 adds diag,
// 2 and above adds trace.
func SetVerbosity(w io.Writer, level int) {
	lw := LogWriters{Ops: w}
	if level >= 1 {
		lw.Diag = w
	}
	if level >= 2 {
		lw.Trace = w
	}
	SetLogWriters(lw)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// TraceEnabled reports whether the trace stream is active. Callers use it
// to skip building expensive trace arguments.
func TraceEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return traceLogger != nil
}
