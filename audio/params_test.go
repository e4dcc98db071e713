package audio

import (
	"math"
	"testing"
)

func TestParamClamp(t *testing.T) {
	params := NewParams()
	p := params.MustRegister("ceiling", 0, 1, 0.5)

	tests := []struct {
		in      float64
		want    float64
		clamped bool
	}{
		{0.25, 0.25, false},
		{1, 1, false},
		{1.5, 1, true},
		{-3, 0, true},
		{math.NaN(), 0, true},
	}
	for _, test := range tests {
		if got := p.Set(test.in); got != test.clamped {
			t.Errorf("Set(%v): want clamped=%v, got %v", test.in, test.clamped, got)
		}
		if want, got := test.want, p.Value(); want != got {
			t.Errorf("Set(%v): want value %v, got %v", test.in, want, got)
		}
	}
}

func TestParamNormalized(t *testing.T) {
	params := NewParams()
	p := params.MustRegister("cutoff", 20, 20_020, 20)
	if clamped := p.SetNormalized(0.5); clamped {
		t.Error("unexpected clamp")
	}
	if want, got := 10_020.0, p.Value(); want != got {
		t.Errorf("want %v, got %v", want, got)
	}
	if want, got := 0.5, p.Normalized(); want != got {
		t.Errorf("want %v, got %v", want, got)
	}
	if clamped := p.SetNormalized(2); !clamped {
		t.Error("expected clamp")
	}
	if want, got := 20_020.0, p.Value(); want != got {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestParamsRegistry(t *testing.T) {
	params := NewParams()
	params.MustRegister("a", 0, 1, 2)
	params.MustRegister("b", -1, 1, 0)

	if _, err := params.Register("a", 0, 1, 0); err == nil {
		t.Error("expected error for duplicate parameter")
	}
	if _, err := params.Register("c", 1, 0, 0); err == nil {
		t.Error("expected error for inverted range")
	}
	if v, _ := params.Value("a"); v != 1 {
		t.Errorf("initial value must be clamped, got %v", v)
	}
	if _, err := params.Set("missing", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
	clamped, err := params.Set("b", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !clamped {
		t.Error("expected clamp")
	}
	var names []string
	for _, p := range params.All() {
		names = append(names, p.Name())
	}
	if want, got := "a,b", names[0]+","+names[1]; want != got {
		t.Errorf("want registration order %v, got %v", want, got)
	}
}
