package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level controls which records are emitted.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var (
	mu    sync.Mutex
	level = INFO
	out   io.Writer = os.Stderr
)

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output (tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func emit(l Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(levelNames[l])
	b.WriteString("] ")
	b.WriteString(component)
	b.WriteString(" - ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(out, b.String())
}

func DebugC(component, msg string)                         { emit(DEBUG, component, msg, nil) }
func DebugCF(component, msg string, fields map[string]any) { emit(DEBUG, component, msg, fields) }
func InfoC(component, msg string)                          { emit(INFO, component, msg, nil) }
func InfoCF(component, msg string, fields map[string]any)  { emit(INFO, component, msg, fields) }
func WarnC(component, msg string)                          { emit(WARN, component, msg, nil) }
func WarnCF(component, msg string, fields map[string]any)  { emit(WARN, component, msg, fields) }
func ErrorC(component, msg string)                         { emit(ERROR, component, msg, nil) }
func ErrorCF(component, msg string, fields map[string]any) { emit(ERROR, component, msg, fields) }
