package sql

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokStar
	tokComma
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("'%s'", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case isIdentStart(c):
			for i < len(s) && (isIdentStart(s[i]) || isDigit(s[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: s[start:i], pos: start})
		case isDigit(c) || (c == '-' && i+1 < len(s) && (isDigit(s[i+1]) || s[i+1] == '.')) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			i++
			for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
				i++
			}
			if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
				i++
				if i < len(s) && (s[i] == '+' || s[i] == '-') {
					i++
				}
				for i < len(s) && isDigit(s[i]) {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i], pos: start})
		case c == '\'' || c == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == c {
					// a doubled quote is an escaped quote
					if i+1 < len(s) && s[i+1] == c {
						b.WriteByte(c)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case c == '=':
			i++
			toks = append(toks, token{kind: tokOp, text: "=", pos: start})
		case c == '!' || c == '<' || c == '>':
			i++
			if i < len(s) && (s[i] == '=' || (c == '<' && s[i] == '>')) {
				i++
			}
			text := s[start:i]
			if text == "!" {
				return nil, fmt.Errorf("unexpected ! at offset %d", start)
			}
			toks = append(toks, token{kind: tokOp, text: text, pos: start})
		case c == '*':
			i++
			toks = append(toks, token{kind: tokStar, text: "*", pos: start})
		case c == ',':
			i++
			toks = append(toks, token{kind: tokComma, text: ",", pos: start})
		case c == '(':
			i++
			toks = append(toks, token{kind: tokLParen, text: "(", pos: start})
		case c == ')':
			i++
			toks = append(toks, token{kind: tokRParen, text: ")", pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, start)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}
