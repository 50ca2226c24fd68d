package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per progress event, for CI and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors int
	warns  int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. The line format is
// "Files : n / total , triples indexed: count".
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage, event.Message)
		return
	}
	_, _ = fmt.Fprintf(r.out, "Files : %d / %d , triples indexed: %d\n",
		event.Current, event.Total, event.Indexed)
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
		r.warns++
	} else {
		r.errors++
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d files, %d triples (%d lines skipped) in %s\n",
		stats.Files, stats.Triples, stats.Skipped, stats.Duration.Round(100*time.Millisecond))
	for _, index := range sortedKeys(stats.Documents) {
		_, _ = fmt.Fprintf(r.out, "  %-20s %d documents\n", index, stats.Documents[index])
	}
	if stats.DispatchFailures > 0 {
		_, _ = fmt.Fprintf(r.out, "  %d bulk dispatches failed; document counts may be low\n", stats.DispatchFailures)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, "  (%d errors, %d warnings)\n", stats.Errors, stats.Warnings)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
