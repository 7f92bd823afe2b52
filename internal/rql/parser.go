package rql

import (
	"fmt"
	"strings"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/model"
)

// Parse parses a full RQL statement in either SELECT-first or FROM-first form.
func Parse(input string) (*Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, recallerrors.Parse(err.Error(), err)
	}
	p := &parser{tokens: tokens}
	q, err := p.parseQuery()
	if err != nil {
		return nil, recallerrors.Parse(err.Error(), err)
	}
	return q, nil
}

// ParseFilter parses a standalone filter expression, as used by --filter.
func ParseFilter(input string) (*FilterExpr, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, recallerrors.FilterSyntax(err.Error(), err)
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseFilterExpr()
	if err != nil {
		return nil, recallerrors.FilterSyntax(err.Error(), err)
	}
	return expr, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) parseQuery() (*Query, error) {
	if p.peekKeyword(kwSelect) {
		return p.parseSelectFirst()
	}
	if p.peekKeyword(kwFrom) {
		return p.parseFromFirst()
	}
	return nil, errf("expected SELECT or FROM")
}

func (p *parser) parseSelectFirst() (*Query, error) {
	if err := p.expectKeyword(kwSelect); err != nil {
		return nil, err
	}
	fields, err := p.parseSelectFields()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwFrom); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	q := &Query{Fields: fields, Table: table}
	if err := p.parseRest(q); err != nil {
		return nil, err
	}
	p.consumeSemicolon()
	return q, nil
}

func (p *parser) parseFromFirst() (*Query, error) {
	if err := p.expectKeyword(kwFrom); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	q := &Query{Table: table}
	if err := p.parseRest(q); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwSelect); err != nil {
		return nil, err
	}
	fields, err := p.parseSelectFields()
	if err != nil {
		return nil, err
	}
	q.Fields = fields
	p.consumeSemicolon()
	return q, nil
}

// parseRest parses the USING/FILTER/ORDER BY/LIMIT clauses shared by both
// surface forms, in that fixed order.
func (p *parser) parseRest(q *Query) error {
	sem, hasSem, lex_, hasLex, err := p.parseUsingClause()
	if err != nil {
		return err
	}
	q.UsingSemantic, q.HasSemantic = sem, hasSem
	q.UsingLexical, q.HasLexical = lex_, hasLex

	filter, err := p.parseFilterClause()
	if err != nil {
		return err
	}
	q.Filter = filter

	order, err := p.parseOrderClause()
	if err != nil {
		return err
	}
	q.Order = order

	limit, hasLimit, offset, hasOffset, err := p.parseLimitClause()
	if err != nil {
		return err
	}
	q.Limit, q.HasLimit = limit, hasLimit
	q.Offset, q.HasOffset = offset, hasOffset
	return nil
}

func (p *parser) parseUsingClause() (sem string, hasSem bool, lex_ string, hasLex bool, err error) {
	if !p.peekKeyword(kwUsing) {
		return "", false, "", false, nil
	}
	p.next()
	for {
		switch {
		case p.peekKeyword(kwSemantic):
			p.next()
			if err = p.expect(tokLParen); err != nil {
				return
			}
			if sem, err = p.expectString(); err != nil {
				return
			}
			hasSem = true
			if err = p.expect(tokRParen); err != nil {
				return
			}
		case p.peekKeyword(kwLexical):
			p.next()
			if err = p.expect(tokLParen); err != nil {
				return
			}
			if lex_, err = p.expectString(); err != nil {
				return
			}
			hasLex = true
			if err = p.expect(tokRParen); err != nil {
				return
			}
		default:
			return
		}
		if p.peek(tokComma) {
			p.next()
		} else {
			return
		}
	}
}

func (p *parser) parseFilterClause() (*FilterExpr, error) {
	if !p.peekKeyword(kwFilter) {
		return nil, nil
	}
	p.next()
	expr, err := p.parseFilterExpr()
	if err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) parseOrderClause() (*Order, error) {
	if !p.peekKeyword(kwOrder) {
		return nil, nil
	}
	p.next()
	if err := p.expectKeyword(kwBy); err != nil {
		return nil, err
	}

	var target OrderTarget
	if p.peekIdent("score") {
		p.next()
		target.ByScore = true
	} else {
		ident, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		target.Field = model.ParseFieldRef(ident)
	}

	dir := OrderDesc
	switch {
	case p.peekKeyword(kwAsc):
		p.next()
		dir = OrderAsc
	case p.peekKeyword(kwDesc):
		p.next()
		dir = OrderDesc
	}

	return &Order{Target: target, Dir: dir}, nil
}

func (p *parser) parseLimitClause() (limit int, hasLimit bool, offset int, hasOffset bool, err error) {
	if !p.peekKeyword(kwLimit) {
		return
	}
	p.next()
	n, err := p.expectNumber()
	if err != nil {
		return
	}
	limit, hasLimit = int(n), true
	if p.peekKeyword(kwOffset) {
		p.next()
		n, err = p.expectNumber()
		if err != nil {
			return
		}
		offset, hasOffset = int(n), true
	}
	return
}

func (p *parser) consumeSemicolon() {
	if p.peek(tokSemicolon) {
		p.next()
	}
}

func (p *parser) parseSelectFields() ([]model.SelectField, error) {
	var fields []model.SelectField
	for {
		switch {
		case p.peek(tokStar):
			p.next()
			fields = append(fields, model.SelectField{Kind: model.SelectAll})
		case p.peekIdent("score"):
			p.next()
			fields = append(fields, model.SelectField{Kind: model.SelectScore})
		default:
			ident, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			fields = append(fields, model.SelectField{
				Kind:  model.SelectFieldRef,
				Field: model.ParseFieldRef(ident),
			})
		}
		if p.peek(tokComma) {
			p.next()
		} else {
			break
		}
	}
	return fields, nil
}

func (p *parser) parseTable() (model.Table, error) {
	ident, err := p.expectIdent()
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(ident) {
	case "doc":
		return model.TableDoc, nil
	case "chunk":
		return model.TableChunk, nil
	default:
		return 0, errf("unknown table %q", ident)
	}
}

func (p *parser) parseFilterExpr() (*FilterExpr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (*FilterExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword(kwOr) {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &FilterExpr{Kind: ExprOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*FilterExpr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword(kwAnd) {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &FilterExpr{Kind: ExprAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (*FilterExpr, error) {
	if p.peekKeyword(kwNot) {
		p.next()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &FilterExpr{Kind: ExprNot, Operand: operand}, nil
	}
	return p.parseTerm()
}

func (p *parser) parseTerm() (*FilterExpr, error) {
	if p.peek(tokLParen) {
		p.next()
		expr, err := p.parseFilterExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	ident, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	field := model.ParseFieldRef(ident)

	if p.peekKeyword(kwIn) {
		p.next()
		if err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		var values []Value
		for {
			v, err := p.expectValue()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.peek(tokComma) {
				p.next()
			} else {
				break
			}
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &FilterExpr{Kind: ExprPredicate, Predicate: &Predicate{
			Kind: PredIn, Field: field, Values: values,
		}}, nil
	}

	op, err := p.parseCmpOp()
	if err != nil {
		return nil, err
	}
	value, err := p.expectValue()
	if err != nil {
		return nil, err
	}
	return &FilterExpr{Kind: ExprPredicate, Predicate: &Predicate{
		Kind: PredCmp, Field: field, Op: op, Value: value,
	}}, nil
}

func (p *parser) parseCmpOp() (CmpOp, error) {
	switch {
	case p.peek(tokEq):
		p.next()
		return CmpEq, nil
	case p.peek(tokNe):
		p.next()
		return CmpNe, nil
	case p.peek(tokLte):
		p.next()
		return CmpLte, nil
	case p.peek(tokGte):
		p.next()
		return CmpGte, nil
	case p.peek(tokLt):
		p.next()
		return CmpLt, nil
	case p.peek(tokGt):
		p.next()
		return CmpGt, nil
	case p.peekKeyword(kwLike):
		p.next()
		return CmpLike, nil
	case p.peekKeyword(kwGlob):
		p.next()
		return CmpGlob, nil
	default:
		return 0, errf("expected comparison operator")
	}
}

func (p *parser) expectValue() (Value, error) {
	tok := p.peekToken()
	if tok == nil {
		return Value{}, errf("expected value")
	}
	switch tok.kind {
	case tokString:
		p.next()
		return Value{Kind: ValString, Str: tok.text}, nil
	case tokNumber:
		p.next()
		return Value{Kind: ValNumber, Num: tok.num}, nil
	default:
		return Value{}, errf("expected value")
	}
}

func (p *parser) expectString() (string, error) {
	tok := p.peekToken()
	if tok == nil || tok.kind != tokString {
		return "", errf("expected string literal")
	}
	p.next()
	return tok.text, nil
}

func (p *parser) expectIdent() (string, error) {
	tok := p.peekToken()
	if tok == nil || tok.kind != tokIdent {
		return "", errf("expected identifier")
	}
	p.next()
	return tok.text, nil
}

func (p *parser) expectNumber() (float64, error) {
	tok := p.peekToken()
	if tok == nil || tok.kind != tokNumber {
		return 0, errf("expected number")
	}
	p.next()
	return tok.num, nil
}

func (p *parser) expectKeyword(kw keyword) error {
	if p.peekKeyword(kw) {
		p.next()
		return nil
	}
	return errf("expected keyword")
}

func (p *parser) expect(kind tokenKind) error {
	if p.peek(kind) {
		p.next()
		return nil
	}
	return errf("unexpected token")
}

func (p *parser) peek(kind tokenKind) bool {
	tok := p.peekToken()
	return tok != nil && tok.kind == kind
}

func (p *parser) peekKeyword(kw keyword) bool {
	tok := p.peekToken()
	return tok != nil && tok.kind == tokKeyword && tok.keyword == kw
}

func (p *parser) peekIdent(ident string) bool {
	tok := p.peekToken()
	return tok != nil && tok.kind == tokIdent && strings.EqualFold(tok.text, ident)
}

func (p *parser) peekToken() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) next() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
