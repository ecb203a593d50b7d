// Package query parses and executes SELECT statements over registered
// tables, reading partition data exclusively through the cached store.
package query

import (
	"strings"
	"unicode"

	apperr "github.com/stratadb/strata/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokNumber
	tokString
	tokSymbol
)

type token struct {
	kind tokenKind
	text string // keywords uppercased, identifiers as written
	pos  int
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "BETWEEN": true, "IS": true, "NULL": true,
	"LIKE": true, "ORDER": true, "GROUP": true, "BY": true, "ASC": true,
	"DESC": true, "LIMIT": true, "OFFSET": true, "AS": true, "TRUE": true,
	"FALSE": true, "COUNT": true, "SUM": true, "AVG": true, "MIN": true,
	"MAX": true,
}

type lexer struct {
	input string
	pos   int
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		text := l.input[start:l.pos]
		if upper := strings.ToUpper(text); keywords[upper] {
			return token{kind: tokKeyword, text: upper, pos: start}, nil
		}
		return token{kind: tokIdent, text: text, pos: start}, nil

	case c >= '0' && c <= '9':
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil

	case c == '\'':
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.input) {
			if l.input[l.pos] == '\'' {
				// Doubled quote is an escaped quote.
				if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
					sb.WriteByte('\'')
					l.pos += 2
					continue
				}
				l.pos++
				return token{kind: tokString, text: sb.String(), pos: start}, nil
			}
			sb.WriteByte(l.input[l.pos])
			l.pos++
		}
		return token{}, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
			"unterminated string literal at position %d", start)

	default:
		for _, sym := range []string{"<=", ">=", "!=", "<>"} {
			if strings.HasPrefix(l.input[l.pos:], sym) {
				l.pos += 2
				return token{kind: tokSymbol, text: sym, pos: start}, nil
			}
		}
		switch c {
		case '=', '<', '>', '(', ')', ',', '*', '+', '-', '/', ';':
			l.pos++
			return token{kind: tokSymbol, text: string(c), pos: start}, nil
		}
		return token{}, apperr.Newf(apperr.CategoryQuery, apperr.CodeParse,
			"unexpected character %q at position %d", c, start)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
