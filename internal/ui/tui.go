package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws a live progress panel with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	model := newIndexModel(cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{cfg: cfg, model: model, done: make(chan struct{})}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithContext(ctx))
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) { r.send(progressMsg(event)) }

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) { r.send(errorMsg(event)) }

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) { r.send(completeMsg(stats)) }

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}

	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// An unresponsive program must not hang shutdown.
	}
	return nil
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

// indexModel is the bubbletea model for indexing progress.
type indexModel struct {
	title    string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	started  time.Time
	last     ProgressEvent
	errors   int
	warnings int
	complete *CompletionStats
}

func newIndexModel(title string) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &indexModel{
		title:   title,
		styles:  DefaultStyles(),
		spinner: s,
		bar:     progress.New(progress.WithSolidFill(ColorLime), progress.WithWidth(50), progress.WithoutPercentage()),
		width:   80,
		started: time.Now(),
	}
}

// Init implements tea.Model.
func (m *indexModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, msg.Width-20)
	case progressMsg:
		m.last = ProgressEvent(msg)
	case errorMsg:
		if msg.IsWarn {
			m.warnings++
		} else {
			m.errors++
		}
	case completeMsg:
		stats := CompletionStats(msg)
		m.complete = &stats
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *indexModel) View() string {
	if m.complete != nil {
		return m.renderComplete()
	}

	title := "amanrdf"
	if m.title != "" {
		title += " • " + m.title
	}

	lines := []string{
		m.styles.Header.Render(title),
		fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Active.Render(m.last.Stage.String())),
	}

	if m.last.Total > 0 {
		pct := float64(m.last.Current) / float64(m.last.Total)
		lines = append(lines,
			fmt.Sprintf("%s  %s", m.bar.ViewAs(pct), m.styles.Active.Render(fmt.Sprintf("%3.0f%%", pct*100))),
			m.styles.Label.Render(fmt.Sprintf("Files : %d / %d , triples indexed: %d",
				m.last.Current, m.last.Total, m.last.Indexed)),
		)
		if eta := estimateETA(time.Since(m.started), m.last.Current, m.last.Total); eta > 0 {
			lines = append(lines, m.styles.Label.Render("ETA: "+formatDuration(eta)))
		}
	}
	if m.last.CurrentFile != "" {
		lines = append(lines, m.styles.Dim.Render(truncateLeft(m.last.CurrentFile, max(20, m.width-4))))
	}
	if m.errors > 0 || m.warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.warnings))+"  "+
			m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.errors)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *indexModel) renderComplete() string {
	s := m.complete
	lines := []string{
		m.styles.Success.Render("✓ Indexing complete"),
		fmt.Sprintf("%s %d", m.styles.Label.Render("Files:    "), s.Files),
		fmt.Sprintf("%s %d (%d lines skipped)", m.styles.Label.Render("Triples:  "), s.Triples, s.Skipped),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration: "), formatDuration(s.Duration)),
	}
	for _, index := range sortedKeys(s.Documents) {
		lines = append(lines, fmt.Sprintf("  %-20s %d", index, s.Documents[index]))
	}
	if s.DispatchFailures > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d bulk dispatches failed", s.DispatchFailures)))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(0, 1).
		Render(strings.Join(lines, "\n")) + "\n"
}

// estimateETA extrapolates the remaining time from the rate so far.
func estimateETA(elapsed time.Duration, done, total int) time.Duration {
	if done <= 0 || done >= total {
		return 0
	}
	perFile := elapsed / time.Duration(done)
	return perFile * time.Duration(total-done)
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncateLeft keeps the tail of s, which for paths is the file name.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen || maxLen < 4 {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
