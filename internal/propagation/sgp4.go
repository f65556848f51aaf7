package propagation

import (
	"errors"
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
	"github.com/totoccar/SpaceSituationalAwareness/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, includes the SDP4 deep-space terms, WGS-84 constants available.
//
// Propagate() takes Satellite by value so SGP4 error codes raised while
// propagating are not visible to the caller. Failures are detected from the
// output instead: NaN/Inf means the solution diverged, a radius below the
// Earth's surface (including the zero vector the library returns on error)
// means the orbit has decayed.

const (
	// EarthRadiusKm is the WGS-84 equatorial radius.
	EarthRadiusKm = 6378.137
	// MuEarth is the WGS-84 gravitational parameter in km³/s².
	MuEarth = 398600.4418

	// DeepSpacePeriodMinutes selects the deep-space branch of SGP4.
	DeepSpacePeriodMinutes = 225.0
)

// SemiMajorAxisKm derives the two-body semi-major axis from a mean motion in rev/day.
func SemiMajorAxisKm(meanMotion float64) float64 {
	n := meanMotion * 2 * math.Pi / 86400.0 // rad/s
	return math.Cbrt(MuEarth / (n * n))
}

// BranchFor returns the SGP4 branch used for an element set.
func BranchFor(es *tle.ElementSet) Branch {
	if es.PeriodMinutes() >= DeepSpacePeriodMinutes {
		return DeepSpace
	}
	return NearEarth
}

// Propagate computes the TEME state of es at the given time.
//
// The satellite record is rebuilt from the element set on every call; nothing
// is cached between calls, so concurrent use is safe and results depend only
// on the arguments. go-satellite resolves whole seconds, so the returned
// StateVector.At is truncated to the second.
func Propagate(es *tle.ElementSet, at time.Time) (StateVector, error) {
	if err := validateLines(es); err != nil {
		return StateVector{}, err
	}
	if err := checkMeanElements(es); err != nil {
		return StateVector{}, err
	}

	sat := satellite.TLEToSat(es.Line1, es.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return StateVector{}, initError(es.CatalogNumber, int64(sat.Error), sat.ErrorStr)
	}

	t := at.UTC().Truncate(time.Second)
	pos, vel := satellite.Propagate(sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	sv := StateVector{
		At:       t,
		Position: transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: transform.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
		Branch:   BranchFor(es),
	}

	if !sv.Position.Finite() || !sv.Velocity.Finite() {
		return StateVector{}, &Error{
			Kind:          NumericDivergence,
			CatalogNumber: es.CatalogNumber,
			Msg:           fmt.Sprintf("sgp4 output is NaN/Inf at %s", t.Format(time.RFC3339)),
		}
	}
	if r := sv.Position.Norm(); r < EarthRadiusKm {
		return StateVector{}, &Error{
			Kind:          DecayedOrbit,
			CatalogNumber: es.CatalogNumber,
			Msg:           fmt.Sprintf("position radius %.1f km is below the Earth's surface at %s", r, t.Format(time.RFC3339)),
		}
	}

	mean, trueAnom, err := twoBodyAnomalies(es, t)
	if err != nil {
		return StateVector{}, err
	}
	sv.MeanAnomalyDeg = mean
	sv.TrueAnomalyDeg = trueAnom

	return sv, nil
}

// validateLines re-checks the raw lines before they reach go-satellite,
// which calls log.Fatal on any field it cannot parse. tle.Parse only accepts
// lines whose every field the library can read.
func validateLines(es *tle.ElementSet) error {
	if _, err := tle.Parse(es.Line1, es.Line2); err != nil {
		return &Error{
			Kind:          InvalidElements,
			CatalogNumber: es.CatalogNumber,
			Msg:           fmt.Sprintf("element set lines are not parseable: %v", err),
		}
	}
	return nil
}

// checkMeanElements rejects element sets whose mean orbit already intersects
// the Earth before handing them to SGP4.
func checkMeanElements(es *tle.ElementSet) error {
	a := SemiMajorAxisKm(es.MeanMotion)
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return &Error{Kind: NumericDivergence, CatalogNumber: es.CatalogNumber, Msg: "semi-major axis is not finite"}
	}
	if a < EarthRadiusKm {
		return &Error{
			Kind:          DecayedOrbit,
			CatalogNumber: es.CatalogNumber,
			Msg:           fmt.Sprintf("semi-major axis %.1f km is inside the Earth", a),
		}
	}
	if perigee := a * (1 - es.Eccentricity); perigee < EarthRadiusKm {
		return &Error{
			Kind:          DecayedOrbit,
			CatalogNumber: es.CatalogNumber,
			Msg:           fmt.Sprintf("perigee altitude %.1f km is below the Earth's surface", perigee-EarthRadiusKm),
		}
	}
	return nil
}

// initError maps the SGP4 initialisation error codes (Vallado) to our kinds.
// Codes 1, 2, 4 and 6 describe non-physical or decayed orbits; anything else
// is treated as a numerical failure.
func initError(catalog int, code int64, detail string) error {
	kind := NumericDivergence
	switch code {
	case 1, 2, 4, 6:
		kind = DecayedOrbit
	}
	return &Error{
		Kind:          kind,
		CatalogNumber: catalog,
		Msg:           fmt.Sprintf("sgp4 init failed: code=%d %s", code, detail),
	}
}

func twoBodyAnomalies(es *tle.ElementSet, t time.Time) (meanDeg, trueDeg float64, err error) {
	n := es.MeanMotion * 2 * math.Pi / 1440.0 // rad/min
	m := es.MeanAnomalyDeg*math.Pi/180 + n*t.Sub(es.Epoch).Minutes()

	e, err := SolveKepler(m, es.Eccentricity)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.CatalogNumber = es.CatalogNumber
		}
		return 0, 0, err
	}

	m = math.Mod(m, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	nu := TrueAnomaly(e, es.Eccentricity)
	if nu < 0 {
		nu += 2 * math.Pi
	}
	return m * 180 / math.Pi, nu * 180 / math.Pi, nil
}
