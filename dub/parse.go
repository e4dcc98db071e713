package dub

import (
	"fmt"
	"strconv"
	"strings"
)

type Node interface {
	isNode()
}

func (Identifier) isNode() {}
func (Int) isNode()        {}
func (Float) isNode()      {}
func (String) isNode()     {}
func (MatchExpr) isNode()  {}

type (
	Identifier string
	Int        int
	Float      float64
	String     string
)

// MatchExpr selects steps of a measure, level by level. See Steps.
type MatchExpr struct {
	matchers []matchItem
}

type Command struct {
	Name Identifier
	Args []Node
}

func (c Command) String() string {
	parts := []string{string(c.Name)}
	for _, arg := range c.Args {
		switch v := arg.(type) {
		case String:
			parts = append(parts, strconv.Quote(string(v)))
		case MatchExpr:
			parts = append(parts, "'…")
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}

// SyntaxError reports the byte offset in the input at which parsing failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

func Parse(input string) (Command, error) {
	tokens, err := lex(input)
	if err != nil {
		return Command{}, err
	}
	p := parser{tokens: tokens}
	return p.command()
}

type parser struct {
	pos    int
	tokens []token
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != typeEOF {
		p.pos++
	}
	return t
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) command() (Command, error) {
	var cmd Command
	name := p.next()
	if name.typ != typeIdentifier {
		return cmd, expected("a command name", name)
	}
	cmd.Name = Identifier(name.text)
	for p.peek().typ != typeEOF {
		arg, err := p.arg()
		if err != nil {
			return cmd, err
		}
		cmd.Args = append(cmd.Args, arg)
	}
	return cmd, nil
}

func (p *parser) arg() (Node, error) {
	t := p.next()
	switch t.typ {
	case typeIdentifier:
		return Identifier(t.text), nil
	case typeString:
		return String(t.text[1 : len(t.text)-1]), nil
	case typeFloat:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: err.Error()}
		}
		return Float(f), nil
	case typeInt:
		return p.integer(t)
	case typeQuote:
		return p.matchExpr()
	}
	return nil, expected("an argument", t)
}

func (p *parser) integer(t token) (Int, error) {
	if t.typ != typeInt {
		return 0, expected("an integer", t)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &SyntaxError{Pos: t.pos, Msg: err.Error()}
	}
	return Int(n), nil
}

// matchExpr parses the levels of a step expression. Each slash descends one
// level; repeated slashes skip levels, which then match everything.
func (p *parser) matchExpr() (MatchExpr, error) {
	var expr MatchExpr
	level := 0
	for {
		m, err := p.matcher()
		if err != nil {
			return expr, err
		}
		expr.matchers = append(expr.matchers, matchItem{level: level, matcher: m})
		if p.peek().typ != typeSlash {
			return expr, nil
		}
		for p.peek().typ == typeSlash {
			p.next()
			level++
		}
	}
}

func (p *parser) matcher() (matcher, error) {
	t := p.next()
	if t.typ == typeAsterisk {
		return matchAll, nil
	}
	start, err := p.integer(t)
	if err != nil {
		return nil, err
	}
	switch p.peek().typ {
	case typeColon:
		p.next()
		end, err := p.integer(p.next())
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("empty range %d:%d", start, end)}
		}
		return rangeMatch{start: int(start), end: int(end)}, nil
	case typeComma, typeSlash, typeEOF:
		list := listMatch{int(start)}
		for p.peek().typ == typeComma {
			p.next()
			n, err := p.integer(p.next())
			if err != nil {
				return nil, err
			}
			list = append(list, int(n))
		}
		return list, nil
	}
	return nil, expected("a step expression", p.peek())
}

func expected(what string, t token) error {
	if t.typ == typeEOF {
		return &SyntaxError{Pos: t.pos, Msg: "expected " + what + ", got end of input"}
	}
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, got %q", what, t.text)}
}
