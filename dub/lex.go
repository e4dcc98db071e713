// Package dub parses the one-line commands typed at the groove prompt.
package dub

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	typeUnknown tokenType = iota
	typeInt
	typeFloat
	typeIdentifier
	typeString
	typeQuote
	typeComma
	typeColon
	typeSlash
	typeAsterisk
	typeEOF
)

var punctuation = map[rune]tokenType{
	'\'': typeQuote,
	',':  typeComma,
	':':  typeColon,
	'/':  typeSlash,
	'*':  typeAsterisk,
}

type token struct {
	typ  tokenType
	pos  int
	text string
}

// lex splits input into tokens. The last token is always typeEOF.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	var tokens []token
	for {
		t, err := l.scan()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, t)
		if t.typ == typeEOF {
			return tokens, nil
		}
	}
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) rest() string { return l.input[l.pos:] }

func (l *lexer) scan() (token, error) {
	l.pos += len(l.rest()) - len(strings.TrimLeftFunc(l.rest(), unicode.IsSpace))
	start := l.pos
	if start == len(l.input) {
		return token{typ: typeEOF, pos: start}, nil
	}
	r, w := utf8.DecodeRuneInString(l.rest())
	switch {
	case unicode.IsLetter(r):
		return l.identifier()
	case r == '"':
		return l.quoted()
	case isNumberStart(l.rest()):
		return l.number()
	}
	if typ, ok := punctuation[r]; ok {
		l.pos += w
		return token{typ: typ, pos: start, text: l.input[start:l.pos]}, nil
	}
	return token{}, l.unexpected()
}

func (l *lexer) unexpected() error {
	r, _ := utf8.DecodeRuneInString(l.rest())
	return &SyntaxError{Pos: l.pos, Msg: fmt.Sprintf("unexpected character %#U", r)}
}

// atBoundary reports whether a word may end at the current position. Words
// are separated by space; numbers may also be followed by punctuation of
// step expressions.
func (l *lexer) atBoundary(number bool) bool {
	if l.pos == len(l.input) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(l.rest())
	return unicode.IsSpace(r) || number && strings.ContainsRune("/:,", r)
}

// Identifiers name commands, devices and parameters, e.g. piano-1 or
// env.attack.
func (l *lexer) identifier() (token, error) {
	start := l.pos
	for _, r := range l.rest() {
		if !unicode.IsLetter(r) && !isDigit(r) && !strings.ContainsRune("_-.", r) {
			break
		}
		l.pos += utf8.RuneLen(r)
	}
	if !l.atBoundary(false) {
		return token{}, l.unexpected()
	}
	return token{typ: typeIdentifier, pos: start, text: l.input[start:l.pos]}, nil
}

func (l *lexer) quoted() (token, error) {
	start := l.pos
	end := strings.IndexByte(l.input[start+1:], '"')
	if end < 0 {
		return token{}, &SyntaxError{Pos: start, Msg: "unterminated string"}
	}
	l.pos = start + end + 2
	return token{typ: typeString, pos: start, text: l.input[start:l.pos]}, nil
}

// number scans an optionally signed integer or decimal. A decimal may omit
// the digits on either side of the point, but not both.
func (l *lexer) number() (token, error) {
	start := l.pos
	typ := typeInt
	if strings.HasPrefix(l.rest(), "-") {
		l.pos++
	}
	l.digits()
	if strings.HasPrefix(l.rest(), ".") {
		typ = typeFloat
		l.pos++
		l.digits()
	}
	if !l.atBoundary(true) {
		return token{}, l.unexpected()
	}
	return token{typ: typ, pos: start, text: l.input[start:l.pos]}, nil
}

func (l *lexer) digits() {
	for l.pos < len(l.input) && isDigit(rune(l.input[l.pos])) {
		l.pos++
	}
}

func isNumberStart(s string) bool {
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, ".")
	return len(s) > 0 && isDigit(rune(s[0]))
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
