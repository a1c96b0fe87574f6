// Package hublog provides debug-gated logging for the hub and router,
// built on the standard library log package the way
// atomic/logging.SessionLogger wraps it for cellorg: a thin logger that
// stays quiet unless debug output is requested, so routine envelope
// traffic doesn't flood an embedder's console.
package hublog

import (
	"io"
	"log"
	"os"
)

// Logger wraps *log.Logger with a debug gate. Non-debug messages
// (warnings, handler failures) always print; debug messages (envelope
// admission, delivery attempts) are dropped unless Debug is true.
type Logger struct {
	out   *log.Logger
	debug bool
}

// New returns a Logger writing to w with the given prefix. Passing nil
// for w defaults to os.Stderr.
func New(w io.Writer, prefix string, debug bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{out: log.New(w, prefix, log.LstdFlags), debug: debug}
}

// Debugf logs a message only when the logger was constructed with debug
// enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.out.Printf(format, args...)
}

// Warnf always logs, regardless of the debug gate.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf("WARN "+format, args...)
}

// Errorf always logs, regardless of the debug gate.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf("ERROR "+format, args...)
}

// Nop returns a Logger that discards everything, used as a safe default
// when an embedder does not supply one.
func Nop() *Logger {
	return New(io.Discard, "", false)
}
