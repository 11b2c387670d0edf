// Package logger implements namespace-scoped debug logging gated by the
// DEBUG environment variable, following the conventions of the debug npm
// package:
//
//	DEBUG=*                   - enable every namespace
//	DEBUG=pipeline:*          - enable a namespace subtree
//	DEBUG=cli:validate,report - enable specific namespaces
//	DEBUG=*,-toolenv:*        - enable everything except a subtree
//
// Output goes to stderr and is colored per namespace when stderr is a TTY
// and DEBUG_COLORS is not "0". Debug logging is developer-facing; user-facing
// messages belong in pkg/console.
package logger

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/preflightci/preflight/pkg/timeutil"
	"github.com/preflightci/preflight/pkg/tty"
)

// Logger is a debug logger bound to one namespace.
type Logger struct {
	namespace string
	enabled   bool
	color     string

	mu      sync.Mutex
	lastLog time.Time
}

var (
	debugEnv    = os.Getenv("DEBUG")
	debugColors = os.Getenv("DEBUG_COLORS") != "0"
	stderrIsTTY = tty.IsStderrTerminal()

	// ANSI 256-color codes chosen to stay readable on light and dark terminals.
	palette = []string{
		"\033[38;5;33m",  // blue
		"\033[38;5;35m",  // green
		"\033[38;5;166m", // orange
		"\033[38;5;125m", // purple
		"\033[38;5;37m",  // cyan
		"\033[38;5;161m", // magenta
		"\033[38;5;136m", // yellow
		"\033[38;5;124m", // red
	}

	colorReset = "\033[0m"
)

// New creates a Logger for the given namespace. Enablement and color are
// computed once at construction from the environment.
func New(namespace string) *Logger {
	return &Logger{
		namespace: namespace,
		enabled:   matchesDebugEnv(namespace),
		color:     namespaceColor(namespace),
		lastLog:   time.Now(),
	}
}

// Enabled reports whether this logger writes anything.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf logs a formatted message with the elapsed time since the last log.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprintf(format, args...))
}

// Print logs a message with the elapsed time since the last log.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprint(args...))
}

func (l *Logger) emit(message string) {
	l.mu.Lock()
	now := time.Now()
	diff := now.Sub(l.lastLog)
	l.lastLog = now
	l.mu.Unlock()

	if l.color != "" {
		fmt.Fprintf(os.Stderr, "%s%s%s %s +%s\n", l.color, l.namespace, colorReset, message, timeutil.FormatDuration(diff))
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s +%s\n", l.namespace, message, timeutil.FormatDuration(diff))
}

func namespaceColor(namespace string) string {
	if !debugColors || !stderrIsTTY {
		return ""
	}
	h := fnv.New32a()
	if _, err := h.Write([]byte(namespace)); err != nil {
		return ""
	}
	return palette[h.Sum32()%uint32(len(palette))]
}

func matchesDebugEnv(namespace string) bool {
	return matchesPatterns(namespace, debugEnv)
}

// matchesPatterns checks the namespace against a comma-separated pattern
// list. Exclusions (leading '-') take precedence over matches.
func matchesPatterns(namespace, patterns string) bool {
	enabled := false
	for _, pattern := range strings.Split(patterns, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if exclude, ok := strings.CutPrefix(pattern, "-"); ok {
			if matchPattern(namespace, exclude) {
				return false
			}
			continue
		}
		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}
	return enabled
}

func matchPattern(namespace, pattern string) bool {
	if pattern == "*" || pattern == namespace {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(namespace, prefix)
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(namespace, suffix)
	}
	return false
}
