package tle

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ISS (ZARYA) near 2024-02-04.
const (
	issLine1 = "1 25544U 98067A   24035.54791667  .00016717  00000-0  30074-3 0  9998"
	issLine2 = "2 25544  51.6426  35.3018 0002080  34.7781 325.3493 15.49856913438562"
)

// Geostationary communications satellite.
const (
	geoLine1 = "1 28884U 05041A   24035.50000000 -.00000283  00000-0  00000+0 0  9992"
	geoLine2 = "2 28884   0.0150 271.7000 0002000 120.0000 330.0000  1.00272000 68002"
)

// withChecksum appends a freshly computed checksum to the first 68 characters.
func withChecksum(line string) string {
	line = line[:LineLength-1]
	return line + strconv.Itoa(Checksum(line))
}

func replaceAt(line string, pos int, s string) string {
	return line[:pos] + s + line[pos+len(s):]
}

func TestParseISS(t *testing.T) {
	es, err := Parse(issLine1, issLine2)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if es.CatalogNumber != 25544 {
		t.Errorf("CatalogNumber = %d, want 25544", es.CatalogNumber)
	}
	if es.Classification != 'U' {
		t.Errorf("Classification = %q, want 'U'", es.Classification)
	}
	if got := es.Designator.String(); got != "1998-067A" {
		t.Errorf("Designator = %q, want 1998-067A", got)
	}

	wantEpoch := time.Date(2024, 2, 4, 13, 9, 0, 0, time.UTC)
	if d := es.Epoch.Sub(wantEpoch); d < 0 || d > time.Millisecond {
		t.Errorf("Epoch = %v, want ~%v", es.Epoch, wantEpoch)
	}

	floats := []struct {
		name      string
		got, want float64
	}{
		{"MeanMotionDot", es.MeanMotionDot, 0.00016717},
		{"MeanMotionDDot", es.MeanMotionDDot, 0},
		{"BStar", es.BStar, 3.0074e-4},
		{"InclinationDeg", es.InclinationDeg, 51.6426},
		{"RAANDeg", es.RAANDeg, 35.3018},
		{"Eccentricity", es.Eccentricity, 0.000208},
		{"ArgPerigeeDeg", es.ArgPerigeeDeg, 34.7781},
		{"MeanAnomalyDeg", es.MeanAnomalyDeg, 325.3493},
		{"MeanMotion", es.MeanMotion, 15.49856913},
	}
	for _, f := range floats {
		if math.Abs(f.got-f.want) > 1e-12 {
			t.Errorf("%s = %g, want %g", f.name, f.got, f.want)
		}
	}

	if es.RevNumber != 43856 {
		t.Errorf("RevNumber = %d, want 43856", es.RevNumber)
	}
	if es.ElementSetNumber != 999 {
		t.Errorf("ElementSetNumber = %d, want 999", es.ElementSetNumber)
	}
	if es.ChecksumValid != [2]bool{true, true} {
		t.Errorf("ChecksumValid = %v, want both true", es.ChecksumValid)
	}
	if p := es.PeriodMinutes(); math.Abs(p-92.91) > 0.01 {
		t.Errorf("PeriodMinutes = %.3f, want ~92.91", p)
	}
}

func TestParseNegativeMeanMotionDot(t *testing.T) {
	es, err := Parse(geoLine1, geoLine2)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if math.Abs(es.MeanMotionDot+0.00000283) > 1e-15 {
		t.Errorf("MeanMotionDot = %g, want -2.83e-6", es.MeanMotionDot)
	}
	if es.BStar != 0 {
		t.Errorf("BStar = %g, want 0", es.BStar)
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	text := "\n   " + issLine1 + "  \r\n\n\t" + issLine2 + "\r\n\n"
	es, err := ParseText(text)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if es.Line1 != issLine1 || es.Line2 != issLine2 {
		t.Errorf("lines were not trimmed: %q / %q", es.Line1, es.Line2)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		line1    string
		line2    string
		wantKind ParseErrorKind
		wantLine int
	}{
		{
			name:     "empty second line",
			line1:    issLine1,
			line2:    "   ",
			wantKind: WrongLineCount,
		},
		{
			name:     "both lines in first argument",
			line1:    issLine1 + "\n" + issLine2,
			line2:    "",
			wantKind: WrongLineCount,
		},
		{
			name:     "three lines",
			line1:    "ISS (ZARYA)\n" + issLine1,
			line2:    issLine2,
			wantKind: WrongLineCount,
		},
		{
			name:     "line 1 missing marker",
			line1:    issLine1[2:],
			line2:    issLine2,
			wantKind: BadLineMarker,
			wantLine: 1,
		},
		{
			name:     "line 2 wrong marker",
			line1:    issLine1,
			line2:    "3" + issLine2[1:],
			wantKind: BadLineMarker,
			wantLine: 2,
		},
		{
			name:     "short line",
			line1:    issLine1[:60],
			line2:    issLine2,
			wantKind: MalformedField,
			wantLine: 1,
		},
		{
			name:     "checksum mismatch on line 2",
			line1:    issLine1,
			line2:    issLine2[:68] + "7",
			wantKind: ChecksumMismatch,
			wantLine: 2,
		},
		{
			name:     "catalog number mismatch",
			line1:    issLine1,
			line2:    withChecksum(replaceAt(issLine2, 2, "25545")),
			wantKind: CatalogNumberMismatch,
		},
		{
			name:     "inclination out of range",
			line1:    issLine1,
			line2:    withChecksum(replaceAt(issLine2, 8, "181.0000")),
			wantKind: FieldOutOfRange,
			wantLine: 2,
		},
		{
			name:     "raan out of range",
			line1:    issLine1,
			line2:    withChecksum(replaceAt(issLine2, 17, "360.0000")),
			wantKind: FieldOutOfRange,
			wantLine: 2,
		},
		{
			name:     "zero mean motion",
			line1:    issLine1,
			line2:    withChecksum(replaceAt(issLine2, 52, " 0.00000000")),
			wantKind: FieldOutOfRange,
			wantLine: 2,
		},
		{
			name:     "epoch day zero",
			line1:    withChecksum(replaceAt(issLine1, 20, "000.54791667")),
			line2:    issLine2,
			wantKind: FieldOutOfRange,
			wantLine: 1,
		},
		{
			name:     "letters in mean motion",
			line1:    issLine1,
			line2:    withChecksum(replaceAt(issLine2, 52, "15.4985X913")),
			wantKind: MalformedField,
			wantLine: 2,
		},
		{
			name:     "bad bstar exponent",
			line1:    withChecksum(replaceAt(issLine1, 53, " 30074x3")),
			line2:    issLine2,
			wantKind: MalformedField,
			wantLine: 1,
		},
		{
			name:     "alpha-5 catalog number",
			line1:    withChecksum(replaceAt(issLine1, 2, "A5544")),
			line2:    withChecksum(replaceAt(issLine2, 2, "A5544")),
			wantKind: MalformedField,
			wantLine: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es, err := Parse(tt.line1, tt.line2)
			if err == nil {
				t.Fatalf("expected %s, got element set %+v", tt.wantKind, es)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %v is not a *ParseError", err)
			}
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s (%v)", pe.Kind, tt.wantKind, err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
			}
		})
	}
}

// blankAt replaces a '0' with a blank. Both weigh zero in the checksum, so
// the line stays valid as far as the checksum is concerned.
func blankAt(t *testing.T, line string, positions ...int) string {
	t.Helper()
	for _, p := range positions {
		if line[p] != '0' {
			t.Fatalf("column %d of %q is %q, not '0'", p+1, line, line[p])
		}
		line = replaceAt(line, p, " ")
	}
	return line
}

func TestParseRejectsUnreadablePadding(t *testing.T) {
	tests := []struct {
		name     string
		line1    string
		line2    string
		wantLine int
	}{
		{"blank in epoch year", withChecksum(replaceAt(issLine1, 18, " 4")), issLine2, 1},
		{"leading blank in epoch day", blankAt(t, issLine1, 20), issLine2, 1},
		{"embedded blank in mean motion dot", blankAt(t, issLine1, 35), issLine2, 1},
		{"blanks in mean motion ddot mantissa", blankAt(t, issLine1, 45, 46, 47), issLine2, 1},
		{"embedded blank in bstar mantissa", blankAt(t, issLine1, 56), issLine2, 1},
		{"leading blanks in eccentricity", issLine1, blankAt(t, issLine2, 26, 27), 2},
		{"trailing blank in eccentricity", issLine1, withChecksum(replaceAt(issLine2, 26, "000208 ")), 2},
		{"three blanks before inclination", geoLine1, blankAt(t, geoLine2, 10), 2},
		{"three blanks before mean motion", issLine1, withChecksum(replaceAt(issLine2, 52, "   15.49856")), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es, err := Parse(tt.line1, tt.line2)
			if err == nil {
				t.Fatalf("accepted %q / %q as %+v", tt.line1, tt.line2, es)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %v is not a *ParseError", err)
			}
			if pe.Kind != MalformedField || pe.Line != tt.wantLine {
				t.Errorf("got %s on line %d, want %s on line %d (%v)", pe.Kind, pe.Line, MalformedField, tt.wantLine, err)
			}
		})
	}
}

func TestParseDecodesPaddedDecimalsPositionally(t *testing.T) {
	line2 := withChecksum(replaceAt(issLine2, 8, "  51.643"))
	es, err := Parse(issLine1, line2)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if math.Abs(es.InclinationDeg-51.643) > 1e-12 {
		t.Errorf("InclinationDeg = %g, want 51.643", es.InclinationDeg)
	}
	if math.Abs(es.Eccentricity-0.000208) > 1e-15 {
		t.Errorf("Eccentricity = %g, want 0.000208", es.Eccentricity)
	}
}

func TestChecksumMessageNamesLine(t *testing.T) {
	_, err := Parse(issLine1, issLine2[:68]+"7")
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch on line 2") {
		t.Errorf("error = %v, want mention of line 2 checksum", err)
	}
}

func TestChecksumDigitMutation(t *testing.T) {
	for _, line := range []string{issLine1, issLine2, geoLine1, geoLine2} {
		if !ValidChecksum(line) {
			t.Fatalf("fixture %q has an invalid checksum", line)
		}
		for i := 0; i < LineLength-1; i++ {
			c := line[i]
			if c < '0' || c > '9' {
				continue
			}
			mutated := replaceAt(line, i, string('0'+(c-'0'+1)%10))
			if ValidChecksum(mutated) {
				t.Errorf("mutating column %d of %q kept the checksum valid", i+1, line)
			}
		}
	}
}

func TestChecksumMinusCountsAsOne(t *testing.T) {
	plain := strings.Repeat(" ", 68)
	minus := replaceAt(plain, 10, "-")
	if got := Checksum(plain); got != 0 {
		t.Errorf("Checksum(blank) = %d, want 0", got)
	}
	if got := Checksum(minus); got != 1 {
		t.Errorf("Checksum(single minus) = %d, want 1", got)
	}
	letters := replaceAt(plain, 10, "ABC+.")
	if got := Checksum(letters); got != 0 {
		t.Errorf("Checksum(letters) = %d, want 0", got)
	}
}

func TestParseImpliedExponent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{" 30074-3", 3.0074e-4},
		{"-11606-4", -1.1606e-5},
		{" 00000+0", 0},
		{" 00000-0", 0},
		{" 12345-5", 1.2345e-6},
		{"+50000+1", 5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseImpliedExponent(1, "test", tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-15 {
				t.Errorf("parseImpliedExponent(%q) = %g, want %g", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeEpochPivot(t *testing.T) {
	tests := []struct {
		yy   int
		day  float64
		want time.Time
	}{
		{57, 1.0, time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC)},
		{99, 365.5, time.Date(1999, 12, 31, 12, 0, 0, 0, time.UTC)},
		{0, 1.25, time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
		{24, 60.0, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{56, 366.0, time.Date(2056, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := decodeEpoch(tt.yy, tt.day)
		if !got.Equal(tt.want) {
			t.Errorf("decodeEpoch(%02d, %g) = %v, want %v", tt.yy, tt.day, got, tt.want)
		}
	}
}

func TestCheckEpochDayLeapYears(t *testing.T) {
	if err := checkEpochDay(24, 366.5); err != nil {
		t.Errorf("day 366.5 of 2024 rejected: %v", err)
	}
	if err := checkEpochDay(23, 366.5); err == nil {
		t.Error("day 366.5 of 2023 accepted")
	}
}
