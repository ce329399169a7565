// Package debug provides category-based debug logging for lokal.
//
// Categories select WHAT is logged (LOKAL_DEBUG or logging.debug), the level
// selects HOW MUCH (LOKAL_LOG_LEVEL or logging.level).
//
//	debug.Log("retrieval", "scored", "id", id, "score", score)
//	if debug.Enabled("providers") { /* expensive formatting */ }
//
// Categories: engine, retrieval, context, tools, providers, storage,
// transport, mcp, ingest, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

// LevelTrace is below slog.LevelDebug. At TRACE, prompts and generated
// text are logged in full.
const LevelTrace = slog.LevelDebug - 4

// Read-only after Init.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("LOKAL_DEBUG"))
}

// Init configures categories and installs the default slog handler on
// stderr. Environment values override the configured ones.
func Init(configCategories, configLevel string) {
	Setup(os.Stderr, configCategories, configLevel)
}

// Setup is Init with an explicit output, used by the console which owns
// the terminal and sends logs to a file instead.
func Setup(w io.Writer, configCategories, configLevel string) *slog.Logger {
	cats := os.Getenv("LOKAL_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("LOKAL_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories in sorted order.
func Categories() []string {
	result := make([]string, 0, len(categories))
	for k := range categories {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Truncate shortens s to at most maxRunes runes, appending "..." when
// anything was cut. It never splits a UTF-8 sequence.
func Truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
