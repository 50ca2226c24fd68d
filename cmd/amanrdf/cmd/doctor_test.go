package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

func TestDoctorCmd_JSON(t *testing.T) {
	// Given: a project with triple files and a bleve backend
	workspace(t)
	dataset(t)

	// When: doctor runs with --json
	out, err := execute(t, "doctor", "--json")

	// Then: the report lists every check and the backend is healthy
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	statuses := map[string]string{}
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "PASS", statuses["data_root"])
	assert.Equal(t, "PASS", statuses["backend"])
}

func TestDoctorCmd_MissingDataRootFails(t *testing.T) {
	// Given: no data root configured
	workspace(t)

	// When: doctor runs
	out, err := execute(t, "doctor")

	// Then: it reports the failure and returns a preflight error
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodePreflightFailed, amerrors.GetCode(err))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "data_root")
}
