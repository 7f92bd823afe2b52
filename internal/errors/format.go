package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message, used outside --json mode.
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}
	re, ok := err.(*RecallError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(re.Message)
	if re.Hint != "" {
		sb.WriteString("\nHint: ")
		sb.WriteString(re.Hint)
	}
	sb.WriteString(fmt.Sprintf("\n[%s]", re.Code))
	return sb.String()
}

// ErrorOut is the "error" object of the JSON response envelope.
type ErrorOut struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Hint    string            `json:"hint,omitempty"`
}

// ToErrorOut converts err into the envelope's error shape, wrapping
// non-RecallError values under the internal code.
func ToErrorOut(err error) ErrorOut {
	if err == nil {
		return ErrorOut{}
	}
	re, ok := err.(*RecallError)
	if !ok {
		re = Wrap(CodeInternal, err)
	}
	return ErrorOut{
		Code:    re.Code,
		Message: re.Message,
		Details: re.Details,
		Hint:    re.Hint,
	}
}

// FormatJSON marshals err as its ErrorOut form.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(ToErrorOut(err))
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	re, ok := err.(*RecallError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": re.Code,
		"message":    re.Message,
		"kind":       string(re.Kind),
		"retryable":  re.Retryable,
	}
	if re.Cause != nil {
		result["cause"] = re.Cause.Error()
	}
	if re.Hint != "" {
		result["hint"] = re.Hint
	}
	for k, v := range re.Details {
		result["detail_"+k] = v
	}
	return result
}

// ExitCode maps an error to a process exit status: 0 on success, 1 on any
// error, regardless of kind.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
