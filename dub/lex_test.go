package dub

import (
	"reflect"
	"testing"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input string
		want  []token
	}{
		{
			input: "A '* 2",
			want: []token{
				{typeIdentifier, 0, "A"},
				{typeQuote, 2, "'"},
				{typeAsterisk, 3, "*"},
				{typeInt, 5, "2"},
				{typeEOF, 6, ""},
			},
		},
		{
			input: "'1:2 /    / 3,4",
			want: []token{
				{typeQuote, 0, "'"},
				{typeInt, 1, "1"},
				{typeColon, 2, ":"},
				{typeInt, 3, "2"},
				{typeSlash, 5, "/"},
				{typeSlash, 10, "/"},
				{typeInt, 12, "3"},
				{typeComma, 13, ","},
				{typeInt, 14, "4"},
				{typeEOF, 15, ""},
			},
		},
		{
			input: "1.0 -1. -.1 .5 -3",
			want: []token{
				{typeFloat, 0, "1.0"},
				{typeFloat, 4, "-1."},
				{typeFloat, 8, "-.1"},
				{typeFloat, 12, ".5"},
				{typeInt, 15, "-3"},
				{typeEOF, 17, ""},
			},
		},
		{
			input: `command "this is a string" 1`,
			want: []token{
				{typeIdentifier, 0, "command"},
				{typeString, 8, `"this is a string"`},
				{typeInt, 27, "1"},
				{typeEOF, 28, ""},
			},
		},
		{
			input: "set piano-1 env.attack 0.5 ",
			want: []token{
				{typeIdentifier, 0, "set"},
				{typeIdentifier, 4, "piano-1"},
				{typeIdentifier, 12, "env.attack"},
				{typeFloat, 23, "0.5"},
				{typeEOF, 27, ""},
			},
		},
		{
			input: "",
			want:  []token{{typeEOF, 0, ""}},
		},
	}
	for _, test := range tests {
		got, err := lex(test.input)
		if err != nil {
			t.Errorf("%q: unexpected lex error: %v", test.input, err)
			continue
		}
		if !reflect.DeepEqual(test.want, got) {
			t.Errorf("%q: token mismatch:\nwant: %+v\ngot:  %+v", test.input, test.want, got)
		}
	}
}

func TestLexerErrors(t *testing.T) {
	for _, input := range []string{
		"a -",
		"a .-",
		"piano-1!",
		`load "unterminated`,
		"seek 1;2",
		"a 1x",
	} {
		if _, err := lex(input); err == nil {
			t.Errorf("expected error for input: %q", input)
		}
	}
}
