// Package logger is a small leveled logger with key/value fields.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Logger is accepted by the navigator, the server and the GUI.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// AppLogger writes one line per entry:
//
//	[2006-01-02 15:04:05] LEVEL: message k=v k=v
type AppLogger struct {
	level  Level
	mu     sync.Mutex
	logger *log.Logger
	now    func() time.Time
}

// NewLogger returns a logger writing to stdout at the named level.
// Unknown names select INFO.
func NewLogger(level string) *AppLogger {
	return New(os.Stdout, ParseLevel(level))
}

// New returns a logger writing to w.
func New(w io.Writer, level Level) *AppLogger {
	return &AppLogger{level: level, logger: log.New(w, "", 0), now: time.Now}
}

// Level reports the minimum level written.
func (l *AppLogger) Level() Level { return l.level }

func (l *AppLogger) Debug(msg string, fields ...any) { l.log(DEBUG, msg, fields...) }
func (l *AppLogger) Info(msg string, fields ...any)  { l.log(INFO, msg, fields...) }
func (l *AppLogger) Warn(msg string, fields ...any)  { l.log(WARN, msg, fields...) }

func (l *AppLogger) Error(msg string, err error, fields ...any) {
	if err != nil {
		fields = append([]any{"error", err}, fields...)
	}
	l.log(ERROR, msg, fields...)
}

func (l *AppLogger) log(level Level, msg string, fields ...any) {
	if level < l.level {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", l.now().Format("2006-01-02 15:04:05"), level, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	// a dangling key is kept so it is not silently lost
	if len(fields)%2 == 1 {
		fmt.Fprintf(&sb, " %v=?", fields[len(fields)-1])
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(sb.String())
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info", "":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// ValidLevel reports whether s names a level.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

type nop struct{}

func (nop) Debug(string, ...any)        {}
func (nop) Info(string, ...any)         {}
func (nop) Warn(string, ...any)         {}
func (nop) Error(string, error, ...any) {}

// Nop discards everything.
func Nop() Logger { return nop{} }
