// Package rql implements the recursive-descent lexer and parser for the
// query language used by the query command and the filter flag shared by
// search and context.
package rql

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokComma
	tokLParen
	tokRParen
	tokStar
	tokEq
	tokNe
	tokLt
	tokLte
	tokGt
	tokGte
	tokSemicolon
	tokKeyword
)

type keyword int

const (
	kwSelect keyword = iota
	kwFrom
	kwUsing
	kwSemantic
	kwLexical
	kwFilter
	kwOrder
	kwBy
	kwLimit
	kwOffset
	kwAsc
	kwDesc
	kwAnd
	kwOr
	kwNot
	kwIn
	kwLike
	kwGlob
)

var keywordNames = map[string]keyword{
	"select": kwSelect, "from": kwFrom, "using": kwUsing, "semantic": kwSemantic,
	"lexical": kwLexical, "filter": kwFilter, "order": kwOrder, "by": kwBy,
	"limit": kwLimit, "offset": kwOffset, "asc": kwAsc, "desc": kwDesc,
	"and": kwAnd, "or": kwOr, "not": kwNot, "in": kwIn, "like": kwLike, "glob": kwGlob,
}

type token struct {
	kind    tokenKind
	text    string
	num     float64
	keyword keyword
}

func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	n := len(runes)

	for i < n {
		ch := runes[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == ',':
			tokens = append(tokens, token{kind: tokComma})
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		case ch == '*':
			tokens = append(tokens, token{kind: tokStar})
			i++
		case ch == ';':
			tokens = append(tokens, token{kind: tokSemicolon})
			i++
		case ch == '=':
			tokens = append(tokens, token{kind: tokEq})
			i++
		case ch == '!':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokNe})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '!'")
			}
		case ch == '<':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokLte})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokLt})
				i++
			}
		case ch == '>':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokGte})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokGt})
				i++
			}
		case ch == '\'' || ch == '"':
			quote := ch
			i++
			var buf strings.Builder
			for i < n && runes[i] != quote {
				if runes[i] == '\\' && i+1 < n {
					buf.WriteRune(runes[i+1])
					i += 2
					continue
				}
				buf.WriteRune(runes[i])
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated string literal")
			}
			i++ // closing quote
			tokens = append(tokens, token{kind: tokString, text: buf.String()})
		case ch >= '0' && ch <= '9':
			start := i
			for i < n && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				i++
			}
			num, err := strconv.ParseFloat(string(runes[start:i]), 64)
			if err != nil {
				return nil, fmt.Errorf("parse number: %w", err)
			}
			tokens = append(tokens, token{kind: tokNumber, num: num})
		case isIdentRune(ch):
			start := i
			for i < n && (isIdentRune(runes[i]) || runes[i] == '.') {
				i++
			}
			word := string(runes[start:i])
			if kw, ok := keywordNames[strings.ToLower(word)]; ok {
				tokens = append(tokens, token{kind: tokKeyword, keyword: kw})
			} else {
				tokens = append(tokens, token{kind: tokIdent, text: word})
			}
		default:
			return nil, fmt.Errorf("unexpected character %q", ch)
		}
	}

	return tokens, nil
}

func isIdentRune(ch rune) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
