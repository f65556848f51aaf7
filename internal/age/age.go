// Package age evaluates how old an element set is relative to an injected
// evaluation time. SGP4 accuracy degrades by kilometres per day, so analysts
// need to know when a classification rests on stale elements.
package age

import (
	"fmt"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
)

const (
	// StaleAfter is the age beyond which an element set is flagged stale.
	StaleAfter = 72 * time.Hour
	// SoftWarnAfter is the age beyond which a refresh is recommended.
	SoftWarnAfter = 12 * time.Hour
	// VeryOldAfter escalates the stale warning.
	VeryOldAfter = 7 * 24 * time.Hour
)

// Info describes the age of an element set at evaluation time.
// AgeHours is negative when the epoch lies in the future.
type Info struct {
	Epoch    time.Time `json:"epoch" yaml:"epoch"`
	AgeHours float64   `json:"age_hours" yaml:"age_hours"`
	AgeDays  float64   `json:"age_days" yaml:"age_days"`
	IsStale  bool      `json:"is_stale" yaml:"is_stale"`
	Warning  string    `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// Evaluate computes the age of es at now. It never fails.
func Evaluate(es *tle.ElementSet, now time.Time) Info {
	return FromEpoch(es.Epoch, now)
}

// FromEpoch is Evaluate for a bare epoch, used by catalog listings.
func FromEpoch(epoch, now time.Time) Info {
	d := now.Sub(epoch)
	hours := d.Hours()
	info := Info{
		Epoch:    epoch.UTC(),
		AgeHours: hours,
		AgeDays:  hours / 24,
		IsStale:  d > StaleAfter,
	}
	info.Warning = warning(d, info.AgeDays)
	return info
}

func warning(d time.Duration, days float64) string {
	switch {
	case d > VeryOldAfter:
		return fmt.Sprintf("element set is very old (%.1f days); position is highly unreliable", days)
	case d > StaleAfter:
		return fmt.Sprintf("element set is stale (%.1f days); position is unreliable", days)
	case d > SoftWarnAfter:
		return fmt.Sprintf("element set is %.1f hours old; consider refreshing", d.Hours())
	default:
		return ""
	}
}
