package tle

import (
	"math"
	"time"
)

// expandYear maps a two-digit year to four digits. Years 57-99 belong to the
// 1900s (Sputnik was launched in 1957), 00-56 to the 2000s.
func expandYear(yy int) int {
	if yy >= 57 {
		return 1900 + yy
	}
	return 2000 + yy
}

func checkEpochDay(yy int, day float64) error {
	year := expandYear(yy)
	limit := 366.0
	if isLeap(year) {
		limit = 367.0
	}
	if !(day >= 1 && day < limit) {
		return outOfRange(1, "epoch day", "%g not in [1, %g) for %d", day, limit, year)
	}
	return nil
}

// decodeEpoch converts YY + fractional day-of-year into UTC. Day 1.0 is
// January 1st 00:00. The fraction is rounded to the microsecond so that the
// same field always yields the same instant.
func decodeEpoch(yy int, day float64) time.Time {
	whole, frac := math.Modf(day)
	t := time.Date(expandYear(yy), time.January, 1, 0, 0, 0, 0, time.UTC)
	t = t.AddDate(0, 0, int(whole)-1)
	micros := math.Round(frac * 86400e6)
	return t.Add(time.Duration(micros) * time.Microsecond)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
