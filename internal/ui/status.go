package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// IndexStatus describes one index known to the configuration.
type IndexStatus struct {
	Name      string `json:"name"`
	Role      string `json:"role"` // "base", "property", "extended"
	Exists    bool   `json:"exists"`
	Documents uint64 `json:"documents"`
}

// StatusInfo contains backend and index health information.
type StatusInfo struct {
	Backend     string        `json:"backend"`
	Location    string        `json:"location"`
	Health      string        `json:"health"` // "ready", "offline", "error"
	StorageSize int64         `json:"storage_size,omitempty"`
	Indices     []IndexStatus `json:"indices"`

	// Breaker is the remote circuit breaker state; empty for local stores.
	Breaker string `json:"breaker,omitempty"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Backend: "+info.Backend))
	_, _ = fmt.Fprintf(r.out, "  Location: %s\n", info.Location)
	_, _ = fmt.Fprintf(r.out, "  Health:   %s\n", r.renderHealth(info.Health))
	if info.StorageSize > 0 {
		_, _ = fmt.Fprintf(r.out, "  Storage:  %s\n", FormatBytes(info.StorageSize))
	}
	if info.Breaker != "" {
		_, _ = fmt.Fprintf(r.out, "  Breaker:  %s\n", info.Breaker)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Indices:")
	for _, ix := range info.Indices {
		if !ix.Exists {
			_, _ = fmt.Fprintf(r.out, "    %-20s %-9s %s\n", ix.Name, ix.Role, r.styles.Warning.Render("missing"))
			continue
		}
		_, _ = fmt.Fprintf(r.out, "    %-20s %-9s %d documents\n", ix.Name, ix.Role, ix.Documents)
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderHealth(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
