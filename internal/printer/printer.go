// Package printer writes the CLI's human-facing output.
package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta, color.Bold)
	faint   = color.New(color.Faint)
)

// Out receives everything except errors.
var Out io.Writer = color.Output

// ErrOut receives formatted errors.
var ErrOut io.Writer = color.Error

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Out, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(Out, msg)
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	// Print title in red to stderr
	red.Fprintf(ErrOut, "%s\n\n", title)

	// Print explanation
	if explanation != "" {
		fmt.Fprintf(ErrOut, "%s\n", explanation)
	}

	// Print context details
	if len(context) > 0 {
		fmt.Fprintf(ErrOut, "\n")
		for key, value := range context {
			fmt.Fprintf(ErrOut, "  %s: %s\n", key, value)
		}
	}

	// Print suggestions
	if len(suggestions) > 0 {
		fmt.Fprintf(ErrOut, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(ErrOut, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(ErrOut, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(ErrOut, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return reportedError(title)
}

// reportedError is an error whose details were already printed.
type reportedError string

func (e reportedError) Error() string { return string(e) }

// Reported reports whether err was already printed by Error or ErrorWithContext.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Say prints a companion's line of dialogue.
func Say(speaker, text string) {
	magenta.Fprintf(Out, "%s: ", speaker)
	fmt.Fprintf(Out, "%s\n", text)
}

// Ask prints a question with numbered options.
func Ask(speaker, question string, options []string) {
	Say(speaker, question)
	for i, opt := range options {
		cyan.Fprintf(Out, "  %d) ", i+1)
		fmt.Fprintf(Out, "%s\n", opt)
	}
}

// Note prints a dimmed one-line remark.
func Note(format string, a ...any) {
	faint.Fprintf(Out, "%s\n", fmt.Sprintf(format, a...))
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}
