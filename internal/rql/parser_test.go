package rql

import (
	"testing"

	"github.com/recall-db/recall/internal/model"
)

func TestParseFromFirstRQL(t *testing.T) {
	q, err := Parse("FROM doc FILTER doc.tag = 'x' LIMIT 2 SELECT doc.id;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Table != model.TableDoc {
		t.Fatalf("expected doc table")
	}
	if !q.HasLimit || q.Limit != 2 {
		t.Fatalf("expected limit 2, got %+v", q)
	}
	if q.Filter == nil {
		t.Fatalf("expected a filter")
	}
}

func TestParseSelectFirstRQL(t *testing.T) {
	q, err := Parse("SELECT doc.id FROM doc FILTER doc.tag = 'x' LIMIT 2;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Table != model.TableDoc {
		t.Fatalf("expected doc table")
	}
	if !q.HasLimit || q.Limit != 2 {
		t.Fatalf("expected limit 2, got %+v", q)
	}
	if q.Filter == nil {
		t.Fatalf("expected a filter")
	}
}

func TestParseFilterExprAnd(t *testing.T) {
	f, err := ParseFilter("doc.tag = 'x' AND chunk.tokens <= 128")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != ExprAnd {
		t.Fatalf("expected top-level AND, got kind %v", f.Kind)
	}
}

func TestParseUsingBothClauses(t *testing.T) {
	q, err := Parse("FROM chunk USING semantic('hello'), lexical('world') SELECT *;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.HasSemantic || q.UsingSemantic != "hello" {
		t.Fatalf("expected semantic clause 'hello', got %+v", q)
	}
	if !q.HasLexical || q.UsingLexical != "world" {
		t.Fatalf("expected lexical clause 'world', got %+v", q)
	}
}

func TestParseOrderByScoreDesc(t *testing.T) {
	q, err := Parse("FROM chunk ORDER BY score DESC LIMIT 5 SELECT *;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Order == nil || !q.Order.Target.ByScore || q.Order.Dir != OrderDesc {
		t.Fatalf("expected ORDER BY score DESC, got %+v", q.Order)
	}
}

func TestParseOrderByFieldDefaultsDesc(t *testing.T) {
	q, err := Parse("FROM doc ORDER BY doc.path SELECT *;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Order == nil || q.Order.Target.ByScore || q.Order.Dir != OrderDesc {
		t.Fatalf("expected ORDER BY doc.path with default DESC, got %+v", q.Order)
	}
	if q.Order.Target.Field.Name != "path" || !q.Order.Target.Field.HasTable || q.Order.Target.Field.Table != model.TableDoc {
		t.Fatalf("expected field doc.path, got %+v", q.Order.Target.Field)
	}
}

func TestParseInPredicate(t *testing.T) {
	f, err := ParseFilter("doc.tag IN ('a', 'b', 'c')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != ExprPredicate || f.Predicate.Kind != PredIn {
		t.Fatalf("expected an IN predicate, got %+v", f)
	}
	if len(f.Predicate.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(f.Predicate.Values))
	}
}

func TestParseMetaFieldReference(t *testing.T) {
	f, err := ParseFilter("doc.meta.author = 'alice'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Predicate.Field.Name != "meta.author" {
		t.Fatalf("expected field name meta.author, got %q", f.Predicate.Field.Name)
	}
}

func TestParseNotWrapsTerm(t *testing.T) {
	f, err := ParseFilter("NOT doc.tag = 'x'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != ExprNot || f.Operand == nil {
		t.Fatalf("expected a NOT node, got %+v", f)
	}
}

func TestParseRejectsUnknownTable(t *testing.T) {
	if _, err := Parse("FROM widget SELECT *;") ; err == nil {
		t.Fatalf("expected an error for an unknown table")
	}
}

func TestParseRejectsMissingSelectOrFrom(t *testing.T) {
	if _, err := Parse("WHERE doc.tag = 'x'"); err == nil {
		t.Fatalf("expected an error when input starts with neither SELECT nor FROM")
	}
}
