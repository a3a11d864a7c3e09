package scale

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"log", "log"},
		{"LOG10", "log"},
		{" arcsinh ", "arcsinh"},
		{"linear", "linear"},
		{"logicle", "linear"},
		{"", "linear"},
	}
	for _, tt := range tests {
		if got := Parse(tt.name).Name(); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTransforms(t *testing.T) {
	t.Parallel()

	if got := (Linear{}).Apply(3.5, 99); got != 3.5 {
		t.Errorf("linear: got %v", got)
	}
	if got := (Log{}).Apply(1000, 0); math.Abs(got-3) > 1e-12 {
		t.Errorf("log(1000): got %v", got)
	}
	if got := (Log{}).Apply(0, 0); !math.IsNaN(got) {
		t.Errorf("log(0): expected NaN, got %v", got)
	}
	if got := (Arcsinh{}).Apply(0, 5); got != 0 {
		t.Errorf("arcsinh(0): got %v", got)
	}
	if got, want := (Arcsinh{}).Apply(150, 0), math.Asinh(1); got != want {
		t.Errorf("arcsinh default cofactor: got %v, want %v", got, want)
	}
}
