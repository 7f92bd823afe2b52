// Package filter lowers a parsed rql.FilterExpr into a parameterized SQL
// fragment that can be spliced into a WHERE clause.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/rql"
)

// docFields and chunkFields are the allowlists field_to_sql validates
// against; meta is handled separately since it takes a dynamic JSON key.
var docFields = map[string]bool{
	"id": true, "path": true, "mtime": true, "hash": true, "tag": true, "source": true,
}

var chunkFields = map[string]bool{
	"id": true, "doc_id": true, "offset": true, "tokens": true, "text": true,
}

var metaKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SQL is a compiled filter: a WHERE-clause fragment plus its positional
// argument values, in the order their '?' placeholders appear.
type SQL struct {
	Clause string
	Args   []any
}

// Compile lowers a filter expression to SQL. defaultTable is used for bare
// (unqualified) field references; the spec requires fields to be
// qualified, but unqualified references are accepted and resolved against
// the query's target table for convenience.
func Compile(expr *rql.FilterExpr, defaultTable model.Table) (SQL, error) {
	if expr == nil {
		return SQL{Clause: "1=1"}, nil
	}
	var sb strings.Builder
	var args []any
	if err := compileExpr(expr, defaultTable, &sb, &args); err != nil {
		return SQL{}, err
	}
	return SQL{Clause: sb.String(), Args: args}, nil
}

func compileExpr(expr *rql.FilterExpr, defaultTable model.Table, sb *strings.Builder, args *[]any) error {
	switch expr.Kind {
	case rql.ExprAnd:
		sb.WriteByte('(')
		if err := compileExpr(expr.Left, defaultTable, sb, args); err != nil {
			return err
		}
		sb.WriteString(" AND ")
		if err := compileExpr(expr.Right, defaultTable, sb, args); err != nil {
			return err
		}
		sb.WriteByte(')')
	case rql.ExprOr:
		sb.WriteByte('(')
		if err := compileExpr(expr.Left, defaultTable, sb, args); err != nil {
			return err
		}
		sb.WriteString(" OR ")
		if err := compileExpr(expr.Right, defaultTable, sb, args); err != nil {
			return err
		}
		sb.WriteByte(')')
	case rql.ExprNot:
		sb.WriteString("NOT (")
		if err := compileExpr(expr.Operand, defaultTable, sb, args); err != nil {
			return err
		}
		sb.WriteByte(')')
	case rql.ExprPredicate:
		return compilePredicate(expr.Predicate, defaultTable, sb, args)
	default:
		return recallerrors.FilterSyntax("unknown filter expression kind", nil)
	}
	return nil
}

func compilePredicate(pred *rql.Predicate, defaultTable model.Table, sb *strings.Builder, args *[]any) error {
	column, err := fieldToSQL(pred.Field, defaultTable)
	if err != nil {
		return err
	}

	switch pred.Kind {
	case rql.PredIn:
		sb.WriteString(column)
		sb.WriteString(" IN (")
		for i, v := range pred.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('?')
			*args = append(*args, valueToArg(v))
		}
		sb.WriteByte(')')
		return nil
	case rql.PredCmp:
		op, err := cmpOpToSQL(pred.Op)
		if err != nil {
			return err
		}
		sb.WriteString(column)
		sb.WriteByte(' ')
		sb.WriteString(op)
		sb.WriteString(" ?")
		*args = append(*args, valueToArg(pred.Value))
		return nil
	default:
		return recallerrors.FilterSyntax("unknown predicate kind", nil)
	}
}

func cmpOpToSQL(op rql.CmpOp) (string, error) {
	switch op {
	case rql.CmpEq:
		return "=", nil
	case rql.CmpNe:
		return "!=", nil
	case rql.CmpLt:
		return "<", nil
	case rql.CmpLte:
		return "<=", nil
	case rql.CmpGt:
		return ">", nil
	case rql.CmpGte:
		return ">=", nil
	case rql.CmpLike:
		return "LIKE", nil
	case rql.CmpGlob:
		return "GLOB", nil
	default:
		return "", recallerrors.FilterSyntax("unknown comparison operator", nil)
	}
}

func valueToArg(v rql.Value) any {
	if v.Kind == rql.ValString {
		return v.Str
	}
	return v.Num
}

// fieldToSQL resolves a field reference to a qualified SQL column
// expression, validating it against the doc/chunk allowlists. A
// "meta.KEY" name on the doc table lowers to a json_extract over doc.meta
// (on the chunk table it is rejected as an unknown field); this is not
// present in the predicate compiler this was ported from and exists
// specifically so doc.meta.KEY projections and filters both work.
func fieldToSQL(field model.FieldRef, defaultTable model.Table) (string, error) {
	table := defaultTable
	if field.HasTable {
		table = field.Table
	}

	if strings.HasPrefix(field.Name, "meta.") {
		if table != model.TableDoc {
			return "", recallerrors.UnknownField(fmt.Sprintf("chunk.%s", field.Name))
		}
		key := field.Name[len("meta."):]
		if !metaKeyPattern.MatchString(key) {
			return "", recallerrors.InvalidArgument(fmt.Sprintf("invalid meta key %q", key))
		}
		return fmt.Sprintf("json_extract(doc.meta, '$.%s')", key), nil
	}

	if table == model.TableDoc {
		if !docFields[field.Name] {
			return "", recallerrors.UnknownField(fmt.Sprintf("doc.%s", field.Name))
		}
		return "doc." + field.Name, nil
	}

	if !chunkFields[field.Name] {
		return "", recallerrors.UnknownField(fmt.Sprintf("chunk.%s", field.Name))
	}
	return "chunk." + field.Name, nil
}

// FieldToSQL exposes fieldToSQL for the retrieval engine's field projection
// and ORDER BY lowering, which need the same qualification and allowlist
// rules as filter compilation.
func FieldToSQL(field model.FieldRef, defaultTable model.Table) (string, error) {
	return fieldToSQL(field, defaultTable)
}
