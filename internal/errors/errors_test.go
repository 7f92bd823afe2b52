package errors

import (
	"errors"
	"testing"
)

func TestNewSetsKindFromCode(t *testing.T) {
	err := New(CodeStoreLocked, "store is locked", nil)
	if err.Kind != KindLocked {
		t.Fatalf("Kind = %q, want %q", err.Kind, KindLocked)
	}
	if err.Error() != "[E_STORE_LOCKED] store is locked" {
		t.Fatalf("unexpected Error(): %q", err.Error())
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(CodeInternal, nil) != nil {
		t.Fatalf("Wrap(nil) should return nil")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(CodeIO, cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeDocNotFound, "doc missing", nil)
	b := New(CodeDocNotFound, "doc missing (different instance)", nil)
	if !errors.Is(a, b) {
		t.Fatalf("expected two RecallErrors with the same code to match Is()")
	}
}

func TestWithDetailAndHintChain(t *testing.T) {
	err := InvalidArgument("bad --k value").
		WithDetail("flag", "--k").
		WithHint("k must be a positive integer")
	if err.Details["flag"] != "--k" {
		t.Fatalf("expected detail to be set")
	}
	if err.Hint == "" {
		t.Fatalf("expected hint to be set")
	}
}

func TestConstructorsSetExpectedKind(t *testing.T) {
	cases := []struct {
		err  *RecallError
		kind Kind
	}{
		{Parse("bad token", nil), KindParse},
		{FilterSyntax("bad filter", nil), KindParse},
		{InvalidArgument("bad arg"), KindInvalidArgument},
		{UnknownField("doc.nope"), KindInvalidArgument},
		{DocNotFound("missing.md"), KindNotFound},
		{StoreNotFound("/tmp/x.db"), KindNotFound},
		{Locked("/tmp/x.db"), KindLocked},
		{IO("write failed", nil), KindIO},
		{ImportFormat("bad ndjson line", nil), KindFormat},
		{SchemaVersion("too new"), KindSchema},
		{EmbeddingDimension("dim mismatch"), KindSchema},
		{Integrity("fts desynced"), KindIntegrity},
		{Internal("unexpected", nil), KindInternal},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("code %s: Kind = %q, want %q", c.err.Code, c.err.Kind, c.kind)
		}
	}
}

func TestNoErrorKindIsRetryable(t *testing.T) {
	if IsRetryable(Locked("/tmp/x.db")) {
		t.Fatalf("lock contention is not retryable by the error layer itself")
	}
}

func TestCodeAndKindOfPlainError(t *testing.T) {
	plain := errors.New("boom")
	if Code(plain) != "" {
		t.Fatalf("expected empty code for a plain error")
	}
	if KindOf(plain) != KindInternal {
		t.Fatalf("expected KindInternal for a plain error")
	}
}
