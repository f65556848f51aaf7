package propagation

import (
	"fmt"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/transform"
)

// Branch names the SGP4 variant that handled an element set.
type Branch string

const (
	NearEarth Branch = "near-earth"
	DeepSpace Branch = "deep-space"
)

// StateVector is the TEME position (km) and velocity (km/s) at At.
type StateVector struct {
	At       time.Time
	Position transform.Vec3
	Velocity transform.Vec3
	Branch   Branch

	// Two-body anomalies at At, kept for explainability.
	MeanAnomalyDeg float64
	TrueAnomalyDeg float64
}

// ErrorKind classifies propagation failures.
type ErrorKind string

const (
	DecayedOrbit      ErrorKind = "DecayedOrbit"
	NumericDivergence ErrorKind = "NumericDivergence"
	InvalidElements   ErrorKind = "InvalidElements"
)

// Error reports why an element set could not be propagated.
type Error struct {
	Kind          ErrorKind
	CatalogNumber int
	Msg           string
}

func (e *Error) Error() string {
	if e.CatalogNumber > 0 {
		return fmt.Sprintf("%s for NORAD %d: %s", e.Kind, e.CatalogNumber, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
