package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// asAman returns the AmanError in err's chain, wrapping plain errors as internal.
func asAman(err error) *AmanError {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ae := asAman(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)
	if ae.Cause != nil && ae.Cause.Error() != ae.Message {
		fmt.Fprintf(&sb, "  Cause: %s\n", ae.Cause)
	}
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)
	return sb.String()
}

// jsonError is the wire form used by the HTTP server and --json output.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ae := asAman(err)

	je := jsonError{
		Code:       ae.Code,
		Message:    ae.Message,
		Category:   string(ae.Category),
		Severity:   string(ae.Severity),
		Details:    ae.Details,
		Suggestion: ae.Suggestion,
		Retryable:  ae.Retryable,
	}
	if ae.Cause != nil {
		je.Cause = ae.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns slog attributes describing err, for use as
// slog.Warn("event", errors.LogAttrs(err)...).
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var ae *AmanError
	if !stderrors.As(err, &ae) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", ae.Code),
		slog.String("error", ae.Message),
		slog.String("severity", string(ae.Severity)),
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}

	keys := make([]string, 0, len(ae.Details))
	for k := range ae.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, ae.Details[k]))
	}
	return attrs
}
