package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

func TestLoadLegacy_FullFile(t *testing.T) {
	// Given: a legacy config naming every supported key
	data := t.TempDir()
	path := writeFile(t, t.TempDir(), "index.config", strings.Join([]string{
		"indexing.base.name\tbindex",
		"indexing.base.include_uri\tyes",
		"indexing.base.include_namespace\tyes",
		"indexing.extend\tyes",
		"indexing.ext.name\teindex",
		"indexing.ext.fields\ttitle;http://purl.org/dc/terms/title label;http://www.w3.org/2000/01/rdf-schema#label",
		"indexing.ext.include_sub\tyes",
		"indexing.ext.include_obj\tno",
		"indexing.data\t" + data,
		"indexing.instances\t4",
		"elastic.address\thttp://localhost",
		"elastic.port\t9200",
	}, "\n"))

	// When: loading it
	cfg, err := LoadLegacy(path)
	require.NoError(t, err)

	// Then: every key lands in the typed config
	assert.True(t, cfg.Indexing.Base.IncludeNamespace)
	assert.True(t, cfg.Indexing.Extended.Enabled)
	assert.False(t, cfg.Indexing.Extended.IncludeObject)
	assert.Equal(t, data, cfg.Indexing.Data)
	assert.Equal(t, 4, cfg.Indexing.Workers)
	assert.Equal(t, BackendRemote, cfg.Backend.Kind)
	assert.Equal(t, "http://localhost:9200", cfg.Backend.Address)
	assert.Equal(t, []string{"title", "label"}, cfg.Fields().Aliases())
}

func TestLoadLegacy_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"unknown key", "indexing.speed\tfast", amerrors.ErrCodeConfigInvalid},
		{"flag not yes/no", "indexing.extend\ttrue", amerrors.ErrCodeConfigInvalid},
		{"missing tab", "indexing.base.name bindex", amerrors.ErrCodeConfigInvalid},
		{"data not a folder", "indexing.data\t/definitely/not/here", amerrors.ErrCodeConfigInvalid},
		{"field without predicate", "indexing.ext.fields\ttitle", amerrors.ErrCodeConfigInvalid},
		{"duplicate predicate", "indexing.ext.fields\ta;http://x/p b;http://x/p", amerrors.ErrCodeDuplicateField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.tsv", tt.content+"\n")

			_, err := LoadLegacy(path)

			require.Error(t, err)
			assert.Equal(t, tt.code, amerrors.GetCode(err))
		})
	}
}

func TestLoadLegacy_PortWithoutAddress(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.tsv", "elastic.port\t9201\n")

	cfg, err := LoadLegacy(path)

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9201", cfg.Backend.Address)
}

func TestIsLegacyPath(t *testing.T) {
	assert.True(t, IsLegacyPath("x.tsv"))
	assert.True(t, IsLegacyPath("/etc/amanrdf/index.CONFIG"))
	assert.False(t, IsLegacyPath("amanrdf.yaml"))
}
