package classify

import (
	"fmt"
	"strings"

	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
)

// signal is an unweighted vote over payload, rocket_body and debris.
type signal struct {
	label  string
	scores [3]float64
}

func vote(label string, payload, rocket, debris float64) signal {
	return signal{label: label, scores: [3]float64{payload, rocket, debris}}
}

// Name tokens, checked in this order. Matching is a case-insensitive
// substring test, so "COSMOS 2251 DEB" is debris even though COSMOS is also
// a payload series.
var (
	DebrisTokens     = []string{"DEBRIS", "DEB"}
	RocketBodyTokens = []string{"ROCKET BODY", "ROCKET", "R/B", "/RB", " RB", "FREGAT", "BRIZ", "CENTAUR", "DELTA"}
	PayloadTokens    = []string{"STARLINK", "ONEWEB", "IRIDIUM", "GPS", "GLONASS", "GALILEO", "BEIDOU", "COSMOS", "INTELSAT"}
)

func nameSignal(hint string) (signal, bool) {
	name := strings.ToUpper(strings.TrimSpace(hint))
	if name == "" {
		return signal{}, false
	}
	if tok, ok := matchToken(name, DebrisTokens); ok {
		return vote(fmt.Sprintf("name hint '%s'", tok), 0, 0, 1), true
	}
	if tok, ok := matchToken(name, RocketBodyTokens); ok {
		return vote(fmt.Sprintf("name hint '%s'", strings.TrimSpace(tok)), 0, 1, 0), true
	}
	if tok, ok := matchToken(name, PayloadTokens); ok {
		return vote(fmt.Sprintf("known constellation '%s'", tok), 1, 0, 0), true
	}
	return signal{}, false
}

func matchToken(name string, tokens []string) (string, bool) {
	for _, t := range tokens {
		if strings.Contains(name, t) {
			return t, true
		}
	}
	return "", false
}

// Regime thresholds.
const (
	NearCircularEcc     = 0.005
	EccentricLEOEcc     = 0.02
	TransferOrbitEcc    = 0.5
	TransferApogeeKm    = 20000.0
	DecayingPerigeeKm   = 300.0
	TypicalPayloadTopKm = 600.0
	DebrisBeltFloorKm   = 1000.0
)

// operationalInclinations are bands where active LEO payloads cluster:
// mid-inclination constellations, crewed stations, polar and sun-synchronous.
var operationalInclinations = [][2]float64{
	{42, 45},
	{51, 56},
	{69, 71},
	{85, 101},
}

func operationalInclination(inc float64) bool {
	for _, b := range operationalInclinations {
		if inc >= b[0] && inc <= b[1] {
			return true
		}
	}
	return false
}

// regimeSignal votes on the orbit's shape and location. Transfer orbits are
// detected from the mean elements first because the instantaneous region of
// a GTO depends on where along the ellipse the object currently is.
func regimeSignal(fs features.Set) (signal, bool) {
	ecc, _ := fs.Get(features.Eccentricity)
	inc, _ := fs.Get(features.InclinationDeg)
	perigee, _ := fs.Get(features.PerigeeAltKm)
	apogee, _ := fs.Get(features.ApogeeAltKm)

	if ecc > TransferOrbitEcc && apogee > TransferApogeeKm {
		return vote("geostationary transfer orbit", 0.05, 0.8, 0.15), true
	}

	switch fs.Region {
	case features.GEO:
		return vote("geostationary belt", 0.9, 0.05, 0.05), true

	case features.LEO:
		switch {
		case perigee < DecayingPerigeeKm && (ecc >= EccentricLEOEcc || fs.AltitudeKm < DecayingPerigeeKm):
			return vote("decaying low orbit", 0.15, 0.15, 0.7), true
		case fs.AltitudeKm >= DebrisBeltFloorKm:
			return vote("high LEO debris belt", 0.3, 0.2, 0.5), true
		case ecc < NearCircularEcc && operationalInclination(inc):
			return vote(fmt.Sprintf("near-circular LEO at operational inclination %.1f°", inc), 0.8, 0.1, 0.1), true
		case ecc >= EccentricLEOEcc:
			return vote(fmt.Sprintf("eccentric LEO (e=%.3f)", ecc), 0.15, 0.4, 0.45), true
		case fs.AltitudeKm < TypicalPayloadTopKm:
			return vote("typical payload altitude", 0.65, 0.2, 0.15), true
		default:
			return vote("mid LEO", 0.55, 0.25, 0.2), true
		}

	case features.MEO:
		if ecc < EccentricLEOEcc && inc >= 50 && inc <= 66 {
			return vote("navigation constellation orbit", 0.85, 0.05, 0.1), true
		}
		return vote("atypical MEO", 0.35, 0.35, 0.3), true

	default:
		return vote("beyond the geostationary belt", 0.2, 0.4, 0.4), true
	}
}

// Plausibility limits. Crossing any of them means the object is decaying or
// the propagated state is barely physical.
const (
	MinPlausibleSpeedKms = 1.0
	MinPlausiblePerigee  = 200.0
	HighBStar            = 0.01
	RapidDecayNDot       = 0.005
)

func plausibilitySignal(fs features.Set) (signal, bool) {
	var reasons []string
	var mass float64

	if fs.SpeedKms < MinPlausibleSpeedKms {
		reasons = append(reasons, "near-zero speed")
		mass += 1
	}
	if p, ok := fs.Get(features.PerigeeAltKm); ok && p < MinPlausiblePerigee {
		reasons = append(reasons, fmt.Sprintf("perigee %.0f km", p))
		mass += 1
	}
	if b, ok := fs.Get(features.BStar); ok && b > HighBStar {
		reasons = append(reasons, "high drag term")
		mass += 0.8
	}
	if n, ok := fs.Get(features.MeanMotionDot); ok && n > RapidDecayNDot {
		reasons = append(reasons, "rapid orbital decay")
		mass += 0.5
	}
	if len(reasons) == 0 {
		return signal{}, false
	}
	if mass > 1 {
		mass = 1
	}
	return vote(strings.Join(reasons, ", "), 0, 0, mass), true
}
