package propagation

import (
	"fmt"
	"math"
)

const (
	maxKeplerIterations = 15
	keplerTolerance     = 1e-12
)

// SolveKepler solves M = E − e·sin(E) for the eccentric anomaly E (radians)
// with Newton's method. It gives up after a fixed number of iterations and
// reports NumericDivergence instead of looping.
func SolveKepler(meanAnomaly, ecc float64) (float64, error) {
	return solveKepler(meanAnomaly, ecc, maxKeplerIterations)
}

func solveKepler(meanAnomaly, ecc float64, maxIter int) (float64, error) {
	if !(ecc >= 0 && ecc < 1) {
		return 0, &Error{Kind: NumericDivergence, Msg: fmt.Sprintf("eccentricity %g outside [0, 1)", ecc)}
	}

	m := math.Mod(meanAnomaly, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}

	e := m
	if ecc > 0.8 {
		e = math.Pi
	}
	for i := 0; i < maxIter; i++ {
		step := (e - ecc*math.Sin(e) - m) / (1 - ecc*math.Cos(e))
		e -= step
		if math.Abs(step) < keplerTolerance {
			return e, nil
		}
	}
	return 0, &Error{
		Kind: NumericDivergence,
		Msg:  fmt.Sprintf("kepler solver did not converge in %d iterations (M=%g, e=%g)", maxIter, meanAnomaly, ecc),
	}
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly (radians).
func TrueAnomaly(eccAnomaly, ecc float64) float64 {
	return 2 * math.Atan2(
		math.Sqrt(1+ecc)*math.Sin(eccAnomaly/2),
		math.Sqrt(1-ecc)*math.Cos(eccAnomaly/2),
	)
}
