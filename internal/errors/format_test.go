package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFormatForUserIncludesHintAndCode(t *testing.T) {
	err := Locked("/tmp/x.db").WithHint("wait and retry, or check for a stale lock file")
	out := FormatForUser(err)
	if !contains(out, "Error:") || !contains(out, "Hint:") || !contains(out, "E_STORE_LOCKED") {
		t.Fatalf("unexpected format: %q", out)
	}
}

func TestFormatForUserPlainError(t *testing.T) {
	out := FormatForUser(errors.New("boom"))
	if out != "boom" {
		t.Fatalf("expected plain error passthrough, got %q", out)
	}
}

func TestToErrorOutRoundTripsJSON(t *testing.T) {
	err := DocNotFound("notes.md").WithDetail("path", "notes.md")
	b, jerr := FormatJSON(err)
	if jerr != nil {
		t.Fatalf("unexpected error: %v", jerr)
	}
	var decoded ErrorOut
	if jerr := json.Unmarshal(b, &decoded); jerr != nil {
		t.Fatalf("unexpected unmarshal error: %v", jerr)
	}
	if decoded.Code != CodeDocNotFound {
		t.Fatalf("Code = %q, want %q", decoded.Code, CodeDocNotFound)
	}
	if decoded.Details["path"] != "notes.md" {
		t.Fatalf("expected detail to round-trip")
	}
}

func TestExitCodeIsOneOnAnyError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{Parse("bad", nil), 1},
		{InvalidArgument("bad"), 1},
		{StoreNotFound("/tmp/x.db"), 1},
		{Locked("/tmp/x.db"), 1},
		{Internal("boom", nil), 1},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
