// Package features derives the physical quantities the classifier reasons
// about from a propagated state and the mean elements it came from.
package features

import (
	"fmt"
	"math"

	"github.com/totoccar/SpaceSituationalAwareness/internal/propagation"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
	"github.com/totoccar/SpaceSituationalAwareness/internal/transform"
)

// Region is an altitude-band orbital regime.
type Region string

const (
	LEO     Region = "LEO"
	MEO     Region = "MEO"
	GEO     Region = "GEO"
	Unknown Region = "UNKNOWN"
)

const (
	LEOCeilingKm     = 2000.0
	GEOAltitudeKm    = 35786.0
	GEOToleranceKm   = 200.0
	SiderealDayMin   = 1436.07
	GEOPeriodSlopMin = 60.0
)

// Named feature keys exposed for explainability.
const (
	InclinationDeg  = "inclination_deg"
	Eccentricity    = "eccentricity"
	PeriodMin       = "period_min"
	MeanMotion      = "mean_motion"
	SemiMajorAxisKm = "semi_major_axis_km"
	PerigeeAltKm    = "perigee_alt_km"
	ApogeeAltKm     = "apogee_alt_km"
	BStar           = "bstar"
	MeanMotionDot   = "mean_motion_dot"
	LatitudeDeg     = "latitude_deg"
	LongitudeDeg    = "longitude_deg"
	TrueAnomalyDeg  = "true_anomaly_deg"
	AltitudeKm      = "altitude_km"
	SpeedKms        = "speed_kms"
	TLEAgeDays      = "tle_age_days"
)

// Set is the immutable feature vector handed to a classifier.
type Set struct {
	AltitudeKm float64
	SpeedKms   float64
	Region     Region
	Named      map[string]float64
}

// Get returns a named feature, or 0 and false when absent.
func (s Set) Get(name string) (float64, bool) {
	v, ok := s.Named[name]
	return v, ok
}

// With returns a copy of s with one extra named feature.
func (s Set) With(name string, v float64) Set {
	named := make(map[string]float64, len(s.Named)+1)
	for k, x := range s.Named {
		named[k] = x
	}
	named[name] = v
	s.Named = named
	return s
}

// ErrorKind classifies feature extraction failures.
type ErrorKind string

const InvalidState ErrorKind = "InvalidState"

// Error signals a state vector that should never have left the propagator.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Extract computes the feature set for sv. It fails only on non-finite input.
func Extract(sv propagation.StateVector, es *tle.ElementSet) (Set, error) {
	if !sv.Position.Finite() || !sv.Velocity.Finite() {
		return Set{}, &Error{Kind: InvalidState, Msg: "state vector contains NaN or Inf"}
	}

	alt := sv.Position.Norm() - propagation.EarthRadiusKm
	speed := sv.Velocity.Norm()
	period := es.PeriodMinutes()
	a := propagation.SemiMajorAxisKm(es.MeanMotion)

	ecef, _ := transform.TEMEToECEF(sv.Position, sv.Velocity, sv.At)
	lat, lon, _ := transform.Geodetic(ecef)

	named := map[string]float64{
		AltitudeKm:      alt,
		SpeedKms:        speed,
		InclinationDeg:  es.InclinationDeg,
		Eccentricity:    es.Eccentricity,
		PeriodMin:       period,
		MeanMotion:      es.MeanMotion,
		SemiMajorAxisKm: a,
		PerigeeAltKm:    a*(1-es.Eccentricity) - propagation.EarthRadiusKm,
		ApogeeAltKm:     a*(1+es.Eccentricity) - propagation.EarthRadiusKm,
		BStar:           es.BStar,
		MeanMotionDot:   es.MeanMotionDot,
		LatitudeDeg:     lat,
		LongitudeDeg:    lon,
		TrueAnomalyDeg:  sv.TrueAnomalyDeg,
	}
	for k, v := range named {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Set{}, &Error{Kind: InvalidState, Msg: fmt.Sprintf("feature %s is not finite", k)}
		}
	}

	return Set{
		AltitudeKm: alt,
		SpeedKms:   speed,
		Region:     RegionFor(alt, period),
		Named:      named,
	}, nil
}

// RegionFor assigns the altitude band. GEO additionally requires a period
// close to one sidereal day so that an eccentric transfer orbit passing
// through the GEO belt at apogee is not mistaken for a geostationary object.
func RegionFor(altitudeKm, periodMin float64) Region {
	switch {
	case math.Abs(altitudeKm-GEOAltitudeKm) <= GEOToleranceKm &&
		math.Abs(periodMin-SiderealDayMin) <= GEOPeriodSlopMin:
		return GEO
	case altitudeKm < LEOCeilingKm:
		return LEO
	case altitudeKm < GEOAltitudeKm:
		return MEO
	default:
		return Unknown
	}
}
