// Package console renders user-facing terminal output: styled status
// messages and tables. Validation and pipeline packages keep their errors
// and results as plain values; styling is applied only here, at the
// presentation boundary.
package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/preflightci/preflight/pkg/styles"
	"github.com/preflightci/preflight/pkg/tty"
)

var colorEnabled = tty.IsStderrTerminal() && os.Getenv("NO_COLOR") == ""

// SetColorEnabled overrides color detection, for --no-color and for tests.
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

var (
	successStyle = lipgloss.NewStyle().Foreground(styles.ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(styles.ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(styles.ColorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(styles.ColorMuted)
	commandStyle = lipgloss.NewStyle().Foreground(styles.ColorCommand)
)

func render(style lipgloss.Style, glyph, message string) string {
	text := message
	if glyph != "" {
		text = glyph + " " + message
	}
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success message with a check mark.
func FormatSuccessMessage(message string) string {
	return render(successStyle, "✓", message)
}

// FormatErrorMessage formats an error message with a cross mark.
func FormatErrorMessage(message string) string {
	return render(errorStyle, "✗", message)
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return render(warningStyle, "!", message)
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return render(infoStyle, "ℹ", message)
}

// FormatVerboseMessage formats a low-priority diagnostic message.
func FormatVerboseMessage(message string) string {
	return render(mutedStyle, "", message)
}

// FormatCommandMessage formats a shell command suggested to the user.
func FormatCommandMessage(message string) string {
	return render(commandStyle, "", message)
}

// FormatErrorWithSuggestions formats an error followed by indented
// remediation suggestions, one per line.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(FormatErrorMessage(message))
	for _, s := range suggestions {
		b.WriteString("\n")
		b.WriteString(mutedRender("  • " + s))
	}
	return b.String()
}

func mutedRender(text string) string {
	if !colorEnabled {
		return text
	}
	return mutedStyle.Render(text)
}

// PrintError writes a formatted error to stderr.
func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, FormatErrorMessage(err.Error()))
}
