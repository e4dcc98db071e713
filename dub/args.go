package dub

import (
	"errors"
	"fmt"
)

var errArgs = errors.New("wrong number of arguments")

// Scan copies the command's arguments into dst, which must hold pointers to
// string, int, float64 or MatchExpr. Identifiers and strings both scan into a
// string, and integers scan into a float64.
func (c Command) Scan(dst ...interface{}) error {
	if len(c.Args) != len(dst) {
		return fmt.Errorf("%s: %w: want %d, got %d", c.Name, errArgs, len(dst), len(c.Args))
	}
	for i, arg := range c.Args {
		if err := scan(arg, dst[i]); err != nil {
			return fmt.Errorf("%s: argument %d: %w", c.Name, i+1, err)
		}
	}
	return nil
}

func scan(arg Node, dst interface{}) error {
	switch p := dst.(type) {
	case *string:
		switch v := arg.(type) {
		case String:
			*p = string(v)
		case Identifier:
			*p = string(v)
		default:
			return fmt.Errorf("expected a name, got %v", arg)
		}
	case *int:
		v, ok := arg.(Int)
		if !ok {
			return fmt.Errorf("expected an integer, got %v", arg)
		}
		*p = int(v)
	case *float64:
		switch v := arg.(type) {
		case Int:
			*p = float64(v)
		case Float:
			*p = float64(v)
		default:
			return fmt.Errorf("expected a number, got %v", arg)
		}
	case *MatchExpr:
		v, ok := arg.(MatchExpr)
		if !ok {
			return fmt.Errorf("expected a step pattern, got %v", arg)
		}
		*p = v
	default:
		panic(fmt.Sprintf("dub: unhandled scan destination %T", dst))
	}
	return nil
}
