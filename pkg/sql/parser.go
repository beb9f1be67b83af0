package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"skipdb/pkg/core"
	"skipdb/pkg/query"
)

// SelectStmt represents a parsed SELECT * FROM table statement.
type SelectStmt struct {
	Table  string
	Where  query.Node
	Order  []query.OrderBy
	Limit  int // -1 when absent
	Offset int
}

// ToQuery converts the statement into a store query.
func (stmt *SelectStmt) ToQuery() core.Query {
	return core.Query{
		Filter: stmt.Where,
		Order:  stmt.Order,
		Skip:   stmt.Offset,
		Limit:  max(stmt.Limit, 0),
	}
}

// Parse parses a single SELECT statement:
//
//	SELECT * FROM people
//	SELECT * FROM people WHERE numero >= 8 AND (city = 'Oslo' OR city IS NULL)
//	SELECT * FROM people ORDER BY name, id DESC LIMIT 10 OFFSET 20
//
// Literals are integers, floats, quoted strings, TRUE/FALSE and NULL.
// AND binds tighter than OR.
func Parse(s string) (*SelectStmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}
	toks, err := lex(orig)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.selectStmt()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.errorf("unexpected %s", p.peek())
	}
	return stmt, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(k tokenKind) bool { return p.peek().kind == k }

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.keyword(kw) {
		return p.errorf("expected %s, got %s", kw, p.peek())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("syntax at offset %d: %s", p.peek().pos, fmt.Sprintf(format, args...))
}

func (p *parser) ident() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || reserved[strings.ToUpper(t.text)] {
		return "", p.errorf("expected identifier, got %s", t)
	}
	p.pos++
	return t.text, nil
}

var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"ORDER": true, "BY": true, "ASC": true, "DESC": true, "LIMIT": true,
	"OFFSET": true, "IS": true, "NOT": true, "NULL": true, "TRUE": true, "FALSE": true,
}

func (p *parser) selectStmt() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if !p.at(tokStar) {
		return nil, p.errorf("only SELECT * is supported")
	}
	p.next()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	stmt := &SelectStmt{Table: table, Limit: -1}

	if p.keyword("WHERE") {
		if stmt.Where, err = p.or(); err != nil {
			return nil, err
		}
	}
	if p.keyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			field, err := p.ident()
			if err != nil {
				return nil, err
			}
			ob := query.Asc(field)
			if p.keyword("DESC") {
				ob.Desc = true
			} else {
				p.keyword("ASC")
			}
			stmt.Order = append(stmt.Order, ob)
			if !p.at(tokComma) {
				break
			}
			p.next()
		}
	}
	if p.keyword("LIMIT") {
		if stmt.Limit, err = p.count("LIMIT"); err != nil {
			return nil, err
		}
	}
	if p.keyword("OFFSET") {
		if stmt.Offset, err = p.count("OFFSET"); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) count(clause string) (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf("invalid %s value %s", clause, t)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, p.errorf("invalid %s value %s", clause, t)
	}
	return n, nil
}

func (p *parser) or() (query.Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	children := []query.Node{left}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return query.Or(children...), nil
}

func (p *parser) and() (query.Node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	children := []query.Node{left}
	for p.keyword("AND") {
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return query.And(children...), nil
}

func (p *parser) primary() (query.Node, error) {
	if p.at(tokLParen) {
		p.next()
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.at(tokRParen) {
			return nil, p.errorf("expected ), got %s", p.peek())
		}
		p.next()
		return n, nil
	}
	return p.condition()
}

func (p *parser) condition() (query.Node, error) {
	field, err := p.ident()
	if err != nil {
		return nil, err
	}
	if p.keyword("IS") {
		negate := p.keyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		if negate {
			return query.Ne(field, nil), nil
		}
		return query.Eq(field, nil), nil
	}

	t := p.next()
	if t.kind != tokOp {
		return nil, p.errorf("expected comparison operator after %s, got %s", field, t)
	}
	op := query.Op(t.text)
	if t.text == "<>" {
		op = query.OpNe
	}
	v, err := p.literal()
	if err != nil {
		return nil, err
	}
	return &query.Condition{Field: field, Op: op, Value: v}, nil
}

func (p *parser) literal() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		if strings.ContainsAny(t.text, ".eE") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, p.errorf("invalid number %s", t)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", t)
		}
		return n, nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "NULL":
			return nil, nil
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	}
	return nil, p.errorf("expected literal, got %s", t)
}
