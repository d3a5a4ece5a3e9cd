package vec

import (
	"math"
	"testing"
)

func TestMultiply_ScalarMatchesVector(t *testing.T) {
	vectors := []Vec2{{0, 0}, {1, 2}, {-3.5, 7.25}, {1e6, -1e-6}}
	scalars := []float64{0, 1, -2, 0.05, 1.3, 1000}

	for _, v := range vectors {
		for _, s := range scalars {
			got := Multiply(v, Scalar(s))
			want := Multiply(v, XY(s, s))
			if got != want {
				t.Errorf("Multiply(%v, %v): scalar %v != vector %v", v, s, got, want)
			}
		}
	}
}

func TestDivide_RoundTrip(t *testing.T) {
	vectors := []Vec2{{1, 2}, {-3.5, 7.25}, {123.456, -0.001}}
	scalars := []float64{1, -2, 0.05, 1.3, 0.1, 1e3}

	for _, v := range vectors {
		for _, s := range scalars {
			got := Divide(Multiply(v, Scalar(s)), Scalar(s))
			if !ApproxEqual(got, v, 1e-9) {
				t.Errorf("Divide(Multiply(%v, %v)): got %v", v, s, got)
			}
		}
	}
}

func TestPartialOperand_Identity(t *testing.T) {
	v := Vec2{X: 4, Y: 6}

	tests := []struct {
		name string
		got  Vec2
		want Vec2
	}{
		{"multiply x only", Multiply(v, X(2)), Vec2{8, 6}},
		{"multiply y only", Multiply(v, Y(3)), Vec2{4, 18}},
		{"divide x only", Divide(v, X(2)), Vec2{2, 6}},
		{"divide y only", Divide(v, Y(3)), Vec2{4, 2}},
		{"add x only", Add(v, X(1)), Vec2{5, 6}},
		{"subtract y only", Subtract(v, Y(1)), Vec2{4, 5}},
		{"add vector", Add(v, Of(Vec2{1, 1})), Vec2{5, 7}},
		{"subtract scalar", Subtract(v, Scalar(4)), Vec2{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestOperations_DoNotMutate(t *testing.T) {
	v := Vec2{X: 1, Y: 2}
	_ = Add(v, Scalar(5))
	_ = Subtract(v, Scalar(5))
	_ = Multiply(v, Scalar(5))
	_ = Divide(v, Scalar(5))
	if v != (Vec2{X: 1, Y: 2}) {
		t.Errorf("input mutated: %v", v)
	}
}

func TestDivide_ByZero(t *testing.T) {
	got := Divide(Vec2{X: 1, Y: -1}, Scalar(0))
	if !math.IsInf(got.X, 1) || !math.IsInf(got.Y, -1) {
		t.Errorf("Divide by zero: got %v, want (+Inf,-Inf)", got)
	}

	nan := Divide(Vec2{}, Scalar(0))
	if !math.IsNaN(nan.X) || !math.IsNaN(nan.Y) {
		t.Errorf("0/0: got %v, want NaN", nan)
	}
}
