package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxLineBytes bounds one log record read by the viewer.
const maxLineBytes = 1024 * 1024

// followInterval is how often Follow polls for appended records.
const followInterval = 100 * time.Millisecond

// Entry is one parsed JSON log record.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	// Raw is the original line; lines that are not JSON keep only Raw.
	Raw   string
	Valid bool
}

// ViewerConfig filters and formats entries.
type ViewerConfig struct {
	// Level hides entries below it.
	Level string
	// Pattern keeps only raw lines it matches.
	Pattern *regexp.Regexp
	NoColor bool
}

// Viewer reads, filters and prints the JSON log files written by Setup.
type Viewer struct {
	cfg    ViewerConfig
	out    io.Writer
	levels map[string]lipgloss.Style
}

// NewViewer creates a viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{cfg: cfg, out: out, levels: map[string]lipgloss.Style{}}
	if !cfg.NoColor {
		v.levels = map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		}
	}
	return v
}

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []Entry
	for _, line := range ring {
		if e := ParseEntry(line); v.matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path after the call until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	r := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for {
			chunk, err := r.ReadString('\n')
			if err != nil {
				// Keep an unterminated tail for the next tick.
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}
			e := ParseEntry(line)
			if !v.matches(e) {
				continue
			}
			select {
			case entries <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Print writes entries one per line.
func (v *Viewer) Print(entries []Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.Format(e))
	}
}

// Format renders e as "15:04:05.000 LEVEL msg key=value ...". Attributes
// are sorted by key.
func (v *Viewer) Format(e Entry) string {
	if !e.Valid {
		return e.Raw
	}

	level := fmt.Sprintf("%-5s", strings.ToUpper(e.Level))
	if style, ok := v.levels[strings.TrimSpace(level)]; ok {
		level = style.Render(level)
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", e.Time.Format("15:04:05.000"), level, e.Msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}

func (v *Viewer) matches(e Entry) bool {
	if v.cfg.Level != "" && ParseLevel(e.Level) < ParseLevel(v.cfg.Level) {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

// ParseEntry decodes one slog JSON line. Lines that are not JSON come
// back with Valid unset.
func ParseEntry(line string) Entry {
	e := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.Valid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			e.Time = parsed
		}
	}
	e.Level, _ = data["level"].(string)
	e.Msg, _ = data["msg"].(string)

	e.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			e.Attrs[k] = val
		}
	}
	return e
}
