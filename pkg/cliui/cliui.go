// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// styles, markdown rendering) for ragchat CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 100

var (
	SuccessMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	NameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	HeaderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	UserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	SystemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames is the braille dot spinner.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Plain reports whether the terminal has no color support (or NO_COLOR is
// set), in which case callers should skip styling and markdown rendering.
func Plain() bool {
	return termenv.EnvColorProfile() == termenv.Ascii
}

// RoleStyle returns the style used to label a message of the given role.
func RoleStyle(role string) lipgloss.Style {
	switch role {
	case "user":
		return UserStyle
	case "assistant":
		return AssistantStyle
	default:
		return SystemStyle
	}
}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Width returns the column width of w when it is a terminal, or defaultWidth.
func Width(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// Wrap word-wraps s to width columns, counting only printable cells, and
// prefixes every continuation line with indent.
func Wrap(s string, width int, indent string) string {
	limit := width - ansi.StringWidth(indent)
	if limit < 20 {
		return s
	}
	wrapped := ansi.Wordwrap(s, limit, "")
	return strings.ReplaceAll(wrapped, "\n", "\n"+indent)
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// Bold spans, used by answers to mark context-derived text, survive as
// emphasis in the rendered output.
func RenderMarkdown(content string) (string, error) {
	style := glamour.WithAutoStyle()
	if Plain() {
		style = glamour.WithStandardStyle("notty")
	}

	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
