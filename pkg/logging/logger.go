package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end of
// a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the main logger type. A nil *Logger still functions, it just
// doesn't log anything, so components may accept a possibly-nil logger and
// always call through it without a nil check. Loggers are safe for
// concurrent use; they write through the standard library's log package so
// they respect any flags set on it (and so writes from distinct loggers
// never interleave mid-line).
type Logger struct {
	// prefix is the dotted sublogger path, e.g. "cachelookup.pass2".
	prefix string
	// level is the maximum level this logger (and its subloggers, unless
	// overridden) will emit.
	level Level
}

// NewRootLogger creates a new root logger at the specified level.
func NewRootLogger(level Level) *Logger {
	return &Logger{level: level}
}

// RootLogger is the default root logger, logging at LevelInfo, from which
// subloggers are normally derived when no explicit root has been
// constructed.
var RootLogger = NewRootLogger(LevelInfo)

// Level returns the logger's configured level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelDisabled
	}
	return l.level
}

// Sublogger creates a new sublogger with the specified name, inheriting the
// parent's level.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, level: l.level}
}

// SubloggerAtLevel creates a new sublogger with the specified name and an
// explicit level override, used when one component needs to run noisier or
// quieter than its parent (e.g. enabling the observed-input processor's
// trace output without tracing the whole build).
func (l *Logger) SubloggerAtLevel(name string, level Level) *Logger {
	sub := l.Sublogger(name)
	if sub == nil {
		sub = &Logger{prefix: name}
	}
	sub.level = level
	return sub
}

func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// log emits a line at the given level if the logger's configured level
// permits it.
func (l *Logger) log(level Level, calldepth int, line string) {
	if l == nil || l.level < level {
		return
	}
	l.output(calldepth, line)
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(err error) {
	l.log(LevelError, 3, color.RedString("error: %v", err))
}

// Warn logs error information with a warning prefix and yellow color.
func (l *Logger) Warn(err error) {
	l.log(LevelWarn, 3, color.YellowString("warning: %v", err))
}

// Info logs information with semantics equivalent to fmt.Sprint.
func (l *Logger) Info(v ...interface{}) {
	l.log(LevelInfo, 3, fmt.Sprint(v...))
}

// Infof logs information with semantics equivalent to fmt.Sprintf.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(LevelInfo, 3, fmt.Sprintf(format, v...))
}

// Debug logs information with semantics equivalent to fmt.Sprint, gated on
// LevelDebug.
func (l *Logger) Debug(v ...interface{}) {
	l.log(LevelDebug, 3, fmt.Sprint(v...))
}

// Debugf logs information with semantics equivalent to fmt.Sprintf, gated on
// LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.log(LevelDebug, 3, fmt.Sprintf(format, v...))
}

// Trace logs information with semantics equivalent to fmt.Sprint, gated on
// LevelTrace. Used for per-observation classification detail in the
// observed-input processor.
func (l *Logger) Trace(v ...interface{}) {
	l.log(LevelTrace, 3, fmt.Sprint(v...))
}

// Tracef logs information with semantics equivalent to fmt.Sprintf, gated on
// LevelTrace.
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.log(LevelTrace, 3, fmt.Sprintf(format, v...))
}

// Writer returns an io.Writer that writes lines at LevelInfo.
func (l *Logger) Writer() io.Writer {
	if l.Level() < LevelInfo {
		return io.Discard
	}
	return &writer{callback: func(s string) { l.Info(s) }}
}
