// Package logging is a tiny leveled wrapper over the standard library
// log package. No other package of this module imports it; the
// expression VM in particular has no I/O.
package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Level is a logging threshold. Only messages at or above the current
// level are written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

var (
	mu           sync.Mutex
	currentLevel = LevelInfo
	out          = log.New(os.Stderr, "", log.LstdFlags)
)

// SetLevel changes the package-wide threshold.
func SetLevel(level Level) {
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

// GetLevel returns the current threshold.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel
}

func Debug(msg string, fields map[string]any) { logAt(LevelDebug, msg, fields) }
func Info(msg string, fields map[string]any)  { logAt(LevelInfo, msg, fields) }
func Warn(msg string, fields map[string]any)  { logAt(LevelWarn, msg, fields) }
func Error(msg string, fields map[string]any) { logAt(LevelError, msg, fields) }

func logAt(level Level, msg string, fields map[string]any) {
	mu.Lock()
	threshold := currentLevel
	mu.Unlock()
	if level < threshold {
		return
	}
	out.Println(render(level, msg, fields))
}

// render formats a log line as "LEVEL msg key=value key=value ...",
// with keys sorted for stable output across runs.
func render(level Level, msg string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	if len(fields) == 0 {
		return b.String()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
