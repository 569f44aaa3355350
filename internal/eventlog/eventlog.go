// Package eventlog writes structured JSON event lines next to the plain
// "[Component] ..." log lines used throughout retinue.
package eventlog

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

// Logger emits JSON event lines for one component of one session.
type Logger struct {
	out       *log.Logger
	component string
	session   string
}

// New returns an event logger. A nil out falls back to log.Default().
func New(out *log.Logger, component, session string) *Logger {
	if out == nil {
		out = log.Default()
	}
	return &Logger{out: out, component: component, session: session}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return New(log.New(io.Discard, "", 0), "", "")
}

// Printf writes a plain line through the underlying logger.
func (l *Logger) Printf(format string, args ...any) {
	l.out.Printf(format, args...)
}

// Info emits an info-level event.
func (l *Logger) Info(eventType string, data map[string]any) {
	l.emit("info", eventType, data)
}

// Warn emits a warn-level event.
func (l *Logger) Warn(eventType string, data map[string]any) {
	l.emit("warn", eventType, data)
}

// Error emits an error-level event.
func (l *Logger) Error(eventType string, data map[string]any) {
	l.emit("error", eventType, data)
}

func (l *Logger) emit(level, eventType string, data map[string]any) {
	line := make(map[string]any, len(data)+5)
	for k, v := range data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		line[k] = v
	}
	line["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	line["level"] = level
	line["component"] = l.component
	line["event_type"] = eventType
	line["session"] = l.session

	jsonData, err := json.Marshal(line)
	if err != nil {
		l.out.Printf("[%s] Failed to marshal log event: %v", l.component, err)
		return
	}
	l.out.Println(string(jsonData))
}
