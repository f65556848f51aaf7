package propagation

import (
	"errors"
	"math"
	"testing"
)

func TestSolveKeplerResidual(t *testing.T) {
	for _, ecc := range []float64{0, 0.0002, 0.1, 0.5, 0.73, 0.9} {
		for m := -7.0; m <= 7.0; m += 0.37 {
			e, err := SolveKepler(m, ecc)
			if err != nil {
				t.Fatalf("SolveKepler(%g, %g): %v", m, ecc, err)
			}
			want := math.Mod(m, 2*math.Pi)
			if want < 0 {
				want += 2 * math.Pi
			}
			if res := e - ecc*math.Sin(e) - want; math.Abs(res) > 1e-10 {
				t.Errorf("SolveKepler(%g, %g) = %g, residual %g", m, ecc, e, res)
			}
		}
	}
}

func TestSolveKeplerCircular(t *testing.T) {
	e, err := SolveKepler(1.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(e-1.2) > 1e-12 {
		t.Errorf("E = %g, want 1.2", e)
	}
	if nu := TrueAnomaly(e, 0); math.Abs(nu-1.2) > 1e-12 {
		t.Errorf("true anomaly = %g, want 1.2", nu)
	}
}

func TestSolveKeplerBoundedIterations(t *testing.T) {
	_, err := solveKepler(1.0, 0.5, 1)
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Kind != NumericDivergence {
		t.Errorf("Kind = %s, want %s", pe.Kind, NumericDivergence)
	}
}

func TestSolveKeplerRejectsOpenOrbits(t *testing.T) {
	if _, err := SolveKepler(1.0, 1.0); err == nil {
		t.Error("expected an error for e = 1")
	}
}
