package rql

import "github.com/recall-db/recall/internal/model"

// OrderDir is the sort direction of an ORDER BY clause.
type OrderDir int

const (
	OrderAsc OrderDir = iota
	OrderDesc
)

// OrderTarget distinguishes ordering by fused score from ordering by a field.
type OrderTarget struct {
	ByScore bool
	Field   model.FieldRef
}

// Order is a resolved ORDER BY clause.
type Order struct {
	Target OrderTarget
	Dir    OrderDir
}

// Query is a fully parsed RQL statement, in either surface form.
type Query struct {
	Fields        []model.SelectField
	Table         model.Table
	UsingSemantic string
	HasSemantic   bool
	UsingLexical  string
	HasLexical    bool
	Filter        *FilterExpr
	Order         *Order
	Limit         int
	HasLimit      bool
	Offset        int
	HasOffset     bool
}

// FilterExprKind distinguishes the four FilterExpr node shapes.
type FilterExprKind int

const (
	ExprAnd FilterExprKind = iota
	ExprOr
	ExprNot
	ExprPredicate
)

// FilterExpr is the boolean expression tree produced by the filter grammar,
// shared by standalone --filter strings and RQL's FILTER clause.
type FilterExpr struct {
	Kind      FilterExprKind
	Left      *FilterExpr
	Right     *FilterExpr
	Operand   *FilterExpr
	Predicate *Predicate
}

// PredicateKind distinguishes a comparison from a set-membership test.
type PredicateKind int

const (
	PredCmp PredicateKind = iota
	PredIn
)

// CmpOp is a comparison operator.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLte
	CmpGt
	CmpGte
	CmpLike
	CmpGlob
)

// ValueKind distinguishes a string literal from a numeric literal.
type ValueKind int

const (
	ValString ValueKind = iota
	ValNumber
)

// Value is an RQL literal.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// Predicate is one leaf of a filter expression: a field compared against a
// value, or tested for membership in a value list.
type Predicate struct {
	Kind   PredicateKind
	Field  model.FieldRef
	Op     CmpOp
	Value  Value
	Values []Value
}
