// Package output prints the short status lines of CLI commands that do
// not run a progress renderer.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/amanrdf/internal/ui"
)

// Writer prints icon-prefixed lines. Errors from writing are ignored.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New returns a plain Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.NoColorStyles()}
}

// NewColored returns a Writer using the ui palette unless noColor is set.
func NewColored(out io.Writer, noColor bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(noColor)}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) styled(style lipgloss.Style, icon, msg string) {
	w.Status(style.Render(icon), msg)
}

// Success prints msg with a check mark.
func (w *Writer) Success(msg string) { w.styled(w.styles.Success, "✓", msg) }

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints msg with a warning sign.
func (w *Writer) Warning(msg string) { w.styled(w.styles.Warning, "!", msg) }

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints msg with a cross.
func (w *Writer) Error(msg string) { w.styled(w.styles.Error, "✗", msg) }

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// KeyValues prints aligned "key: value" pairs in the given order.
func (w *Writer) KeyValues(pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range pairs {
		label := w.styles.Label.Render(fmt.Sprintf("%-*s", width+1, p[0]+":"))
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", label, p[1])
	}
}

// Code prints an indented block surrounded by blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
