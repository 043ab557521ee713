package logger

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu  sync.RWMutex
	log = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           charmlog.InfoLevel,
	})
)

// SetLevel adjusts the global log level. Unknown values fall back to info.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		log.SetLevel(charmlog.DebugLevel)
	case "warn", "warning":
		log.SetLevel(charmlog.WarnLevel)
	case "error":
		log.SetLevel(charmlog.ErrorLevel)
	default:
		log.SetLevel(charmlog.InfoLevel)
	}
}

// SetOutput redirects log output. Used by tests to capture entries.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

func DebugC(component, msg string) {
	logWith(charmlog.DebugLevel, component, msg, nil)
}

func DebugCF(component, msg string, fields map[string]any) {
	logWith(charmlog.DebugLevel, component, msg, fields)
}

func InfoC(component, msg string) {
	logWith(charmlog.InfoLevel, component, msg, nil)
}

func InfoCF(component, msg string, fields map[string]any) {
	logWith(charmlog.InfoLevel, component, msg, fields)
}

func WarnC(component, msg string) {
	logWith(charmlog.WarnLevel, component, msg, nil)
}

func WarnCF(component, msg string, fields map[string]any) {
	logWith(charmlog.WarnLevel, component, msg, fields)
}

func ErrorC(component, msg string) {
	logWith(charmlog.ErrorLevel, component, msg, nil)
}

func ErrorCF(component, msg string, fields map[string]any) {
	logWith(charmlog.ErrorLevel, component, msg, fields)
}

func logWith(level charmlog.Level, component, msg string, fields map[string]any) {
	// Deterministic field order keeps log lines diffable in tests.
	kvs := make([]any, 0, 2+2*len(fields))
	kvs = append(kvs, "component", component)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kvs = append(kvs, k, fields[k])
	}

	mu.RLock()
	defer mu.RUnlock()
	log.Log(level, msg, kvs...)
}
