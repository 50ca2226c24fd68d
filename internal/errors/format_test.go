package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := IndexMissingError("creator")

	out := FormatForCLI(err)

	assert.Contains(t, out, `Error: required index "creator" does not exist`)
	assert.Contains(t, out, "Hint: run the baseline pass")
	assert.Contains(t, out, "Code: ERR_207_INDEX_MISSING")
}

func TestFormatForCLI_PlainErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
	assert.NotContains(t, out, "Cause:")
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	err := DispatchError("bindex", 10, errors.New("timeout"))

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ERR_505_DISPATCH_FAILED", got["code"])
	assert.Equal(t, "timeout", got["cause"])
	assert.Equal(t, "WARNING", got["severity"])
}

func TestLogAttrs_SortedDetails(t *testing.T) {
	err := DispatchError("bindex", 7, nil)

	attrs := LogAttrs(err)

	require.Len(t, attrs, 5)
	assert.Equal(t, slog.String("error_code", ErrCodeDispatchFailed), attrs[0])
	assert.Equal(t, slog.String("batch_size", "7"), attrs[3])
	assert.Equal(t, slog.String("index", "bindex"), attrs[4])
}

func TestLogAttrs_PlainError(t *testing.T) {
	attrs := LogAttrs(errors.New("boom"))
	assert.Equal(t, []any{slog.String("error", "boom")}, attrs)
	assert.Nil(t, LogAttrs(nil))
}
