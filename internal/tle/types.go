package tle

import "time"

// ElementSet is a parsed and validated two-line element set.
// It is built once per request by Parse and never modified afterwards.
type ElementSet struct {
	CatalogNumber  int
	Classification byte // U, C or S
	Designator     Designator
	Epoch          time.Time

	// Drag terms as encoded on line 1.
	MeanMotionDot    float64 // first derivative of mean motion / 2, rev/day²
	MeanMotionDDot   float64 // second derivative of mean motion / 6, rev/day³
	BStar            float64 // drag term, 1/earth radii
	EphemerisType    int
	ElementSetNumber int

	InclinationDeg float64
	RAANDeg        float64
	Eccentricity   float64
	ArgPerigeeDeg  float64
	MeanAnomalyDeg float64
	MeanMotion     float64 // rev/day
	RevNumber      int

	Line1 string
	Line2 string

	// ChecksumValid reports the checksum result per line. Parse only returns
	// element sets where both are true; the field is kept for diagnostics.
	ChecksumValid [2]bool
}

// Designator is the COSPAR international designator from line 1.
type Designator struct {
	LaunchYear   int // four-digit year, 0 when the field is blank
	LaunchNumber int
	Piece        string
}

// String renders the designator the way it appears in catalogs, e.g. "1998-067A".
func (d Designator) String() string {
	if d.LaunchYear == 0 {
		return ""
	}
	return formatDesignator(d)
}

// PeriodMinutes returns the orbital period derived from the mean motion.
func (es *ElementSet) PeriodMinutes() float64 {
	return minutesPerDay / es.MeanMotion
}

// Entry is a named element set as published by a catalog source.
type Entry struct {
	Name     string
	Elements *ElementSet
}

const minutesPerDay = 1440.0
