package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-01-02T10:00:00.000Z","level":"DEBUG","msg":"triple_object_unclassifiable","file":"a.nt"}
{"time":"2026-01-02T10:00:01.000Z","level":"INFO","msg":"index_pass_started","stage":"Baseline","files":2}
not json at all
{"time":"2026-01-02T10:00:02.000Z","level":"WARN","msg":"bulk_dispatch_failed","index":"bindex","size":4}
{"time":"2026-01-02T10:00:03.000Z","level":"ERROR","msg":"property_index_missing","index":"title"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amanrdf.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func msgs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Valid {
			out = append(out, e.Msg)
		} else {
			out = append(out, e.Raw)
		}
	}
	return out
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"last two", ViewerConfig{}, 2, []string{"bulk_dispatch_failed", "property_index_missing"}},
		{"level filter", ViewerConfig{Level: "warn"}, 50, []string{"bulk_dispatch_failed", "property_index_missing"}},
		{"pattern filter", ViewerConfig{Pattern: regexp.MustCompile(`"index":"title"`)}, 50, []string{"property_index_missing"}},
		{"raw lines kept", ViewerConfig{}, 3, []string{"not json at all", "bulk_dispatch_failed", "property_index_missing"}},
		{"zero lines", ViewerConfig{}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, nil).Tail(path, tt.n)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, entries)
				return
			}
			assert.Equal(t, tt.want, msgs(entries))
		})
	}
}

func TestViewer_TailMissingFile(t *testing.T) {
	_, err := NewViewer(ViewerConfig{}, nil).Tail(filepath.Join(t.TempDir(), "none.log"), 10)
	assert.Error(t, err)
}

func TestViewer_FormatSortsAttrs(t *testing.T) {
	// Given: a plain viewer and a record with several attributes
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)
	e := ParseEntry(`{"time":"2026-01-02T10:00:02.5Z","level":"WARN","msg":"bulk_dispatch_failed","size":4,"index":"bindex"}`)

	// When: it is printed
	v.Print([]Entry{e, ParseEntry("plain")})

	// Then: attributes come out in key order and raw lines are untouched
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "10:00:02.500 WARN  bulk_dispatch_failed index=bindex size=4", lines[0])
	assert.Equal(t, "plain", lines[1])
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log file with history
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "info"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan Entry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(3 * followInterval)

	// When: records are appended, one of them below the level
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"level":"DEBUG","msg":"hidden"}` + "\n" + `{"level":"INFO","msg":"index_pass_complete"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new matching record arrives
	select {
	case e := <-entries:
		assert.Equal(t, "index_pass_complete", e.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, entries)
}
