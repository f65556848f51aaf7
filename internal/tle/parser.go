package tle

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPadding is the number of blanks a decimal field may carry. SGP4
// readers strip at most two before parsing.
const maxPadding = 2

// Parse validates a two-line element set and decodes every fixed-width field.
// It is a pure function of its inputs. Each argument must hold exactly one
// non-empty line.
func Parse(line1, line2 string) (*ElementSet, error) {
	l1, l2 := nonEmptyLines(line1), nonEmptyLines(line2)
	if len(l1) != 1 || len(l2) != 1 {
		return nil, &ParseError{
			Kind: WrongLineCount,
			Msg:  fmt.Sprintf("got %d and %d non-empty lines, want 1 and 1", len(l1), len(l2)),
		}
	}
	return parseLines(l1[0], l2[0])
}

// ParseText is Parse for a single block of text. Blank lines and surrounding
// whitespace are ignored; exactly two lines must remain.
func ParseText(text string) (*ElementSet, error) {
	lines := nonEmptyLines(text)
	if len(lines) != 2 {
		return nil, &ParseError{
			Kind: WrongLineCount,
			Msg:  fmt.Sprintf("got %d non-empty lines, want 2", len(lines)),
		}
	}
	return parseLines(lines[0], lines[1])
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func parseLines(line1, line2 string) (*ElementSet, error) {
	lines := [2]string{line1, line2}

	for i, l := range lines {
		marker := strconv.Itoa(i+1) + " "
		if !strings.HasPrefix(l, marker) {
			return nil, &ParseError{
				Kind: BadLineMarker,
				Line: i + 1,
				Msg:  fmt.Sprintf("line must start with %q", marker),
			}
		}
	}
	for i, l := range lines {
		if len(l) != LineLength {
			return nil, malformed(i+1, "line", "length %d, want %d", len(l), LineLength)
		}
	}

	es := &ElementSet{Line1: line1, Line2: line2}
	for i, l := range lines {
		es.ChecksumValid[i] = ValidChecksum(l)
	}
	for i, l := range lines {
		if !es.ChecksumValid[i] {
			return nil, &ParseError{
				Kind: ChecksumMismatch,
				Line: i + 1,
				Msg:  fmt.Sprintf("checksum mismatch on line %d: computed %d, found %q", i+1, Checksum(l), l[LineLength-1]),
			}
		}
	}

	if err := decodeLine1(es, line1); err != nil {
		return nil, err
	}
	cat2, err := decodeLine2(es, line2)
	if err != nil {
		return nil, err
	}
	if cat2 != es.CatalogNumber {
		return nil, &ParseError{
			Kind: CatalogNumberMismatch,
			Msg:  fmt.Sprintf("line 1 has catalog number %d, line 2 has %d", es.CatalogNumber, cat2),
		}
	}
	if err := checkRanges(es); err != nil {
		return nil, err
	}
	return es, nil
}

func decodeLine1(es *ElementSet, l string) error {
	cat, err := parseCatalogNumber(1, l[2:7])
	if err != nil {
		return err
	}
	es.CatalogNumber = cat

	switch c := l[7]; c {
	case 'U', 'C', 'S':
		es.Classification = c
	case ' ':
		es.Classification = 'U'
	default:
		return malformed(1, "classification", "unknown marker %q", c)
	}

	if es.Designator, err = parseDesignator(l[9:17]); err != nil {
		return err
	}

	yy, err := parseDigits(1, "epoch year", l[18:20])
	if err != nil {
		return err
	}
	day, err := parseDecimal(1, "epoch day", l[20:32], 0)
	if err != nil {
		return err
	}
	if err := checkEpochDay(yy, day); err != nil {
		return err
	}
	es.Epoch = decodeEpoch(yy, day)

	if es.MeanMotionDot, err = parseDecimal(1, "mean motion dot", l[33:43], maxPadding); err != nil {
		return err
	}
	if es.MeanMotionDDot, err = parseImpliedExponent(1, "mean motion ddot", l[44:52]); err != nil {
		return err
	}
	if es.BStar, err = parseImpliedExponent(1, "bstar", l[53:61]); err != nil {
		return err
	}
	if es.EphemerisType, err = parseInt(1, "ephemeris type", l[62:63], true); err != nil {
		return err
	}
	if es.ElementSetNumber, err = parseInt(1, "element set number", l[64:68], true); err != nil {
		return err
	}
	return nil
}

func decodeLine2(es *ElementSet, l string) (int, error) {
	cat, err := parseCatalogNumber(2, l[2:7])
	if err != nil {
		return 0, err
	}
	if es.InclinationDeg, err = parseDecimal(2, "inclination", l[8:16], maxPadding); err != nil {
		return 0, err
	}
	if es.RAANDeg, err = parseDecimal(2, "raan", l[17:25], maxPadding); err != nil {
		return 0, err
	}

	// Implied leading decimal point over all seven columns.
	ecc := l[26:33]
	if !allDigits(ecc) {
		return 0, malformed(2, "eccentricity", "%q is not seven digits", ecc)
	}
	if es.Eccentricity, err = strconv.ParseFloat("0."+ecc, 64); err != nil {
		return 0, malformed(2, "eccentricity", "%v", err)
	}

	if es.ArgPerigeeDeg, err = parseDecimal(2, "argument of perigee", l[34:42], maxPadding); err != nil {
		return 0, err
	}
	if es.MeanAnomalyDeg, err = parseDecimal(2, "mean anomaly", l[43:51], maxPadding); err != nil {
		return 0, err
	}
	if es.MeanMotion, err = parseDecimal(2, "mean motion", l[52:63], maxPadding); err != nil {
		return 0, err
	}
	if es.RevNumber, err = parseInt(2, "revolution number", l[63:68], true); err != nil {
		return 0, err
	}
	return cat, nil
}

func checkRanges(es *ElementSet) error {
	if !(es.InclinationDeg >= 0 && es.InclinationDeg <= 180) {
		return outOfRange(2, "inclination", "%g not in [0, 180]", es.InclinationDeg)
	}
	angles := []struct {
		name string
		v    float64
	}{
		{"raan", es.RAANDeg},
		{"argument of perigee", es.ArgPerigeeDeg},
		{"mean anomaly", es.MeanAnomalyDeg},
	}
	for _, a := range angles {
		if !(a.v >= 0 && a.v < 360) {
			return outOfRange(2, a.name, "%g not in [0, 360)", a.v)
		}
	}
	if !(es.Eccentricity >= 0 && es.Eccentricity < 1) {
		return outOfRange(2, "eccentricity", "%g not in [0, 1)", es.Eccentricity)
	}
	if !(es.MeanMotion > 0) {
		return outOfRange(2, "mean motion", "%g rev/day must be positive", es.MeanMotion)
	}
	return nil
}

func parseCatalogNumber(line int, s string) (int, error) {
	t := strings.TrimSpace(s)
	if t != "" && t[0] >= 'A' && t[0] <= 'Z' {
		return 0, malformed(line, "catalog number", "alpha-5 catalog number %q is not supported", t)
	}
	return parseInt(line, "catalog number", s, false)
}

// parseInt decodes a right-aligned integer field. Blank fields are accepted
// as zero only when allowBlank is set.
func parseInt(line int, field, s string, allowBlank bool) (int, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		if allowBlank {
			return 0, nil
		}
		return 0, malformed(line, field, "field is blank")
	}
	if !allDigits(t) {
		return 0, malformed(line, field, "%q is not an integer", s)
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, malformed(line, field, "%v", err)
	}
	return n, nil
}

// parseDigits decodes an unpadded unsigned integer field.
func parseDigits(line int, field, s string) (int, error) {
	if !allDigits(s) {
		return 0, malformed(line, field, "%q must be %d digits", s, len(s))
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(line, field, "%v", err)
	}
	return n, nil
}

// parseDecimal decodes a field with an explicit decimal point, e.g. " .00016717".
// Blanks are allowed only as padding at either end, at most maxBlanks of them.
func parseDecimal(line int, field, s string, maxBlanks int) (float64, error) {
	t := strings.Trim(s, " ")
	if t == "" {
		return 0, malformed(line, field, "field is blank")
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if !(c >= '0' && c <= '9') && c != '.' && c != '-' && c != '+' {
			return 0, malformed(line, field, "%q is not a decimal number", s)
		}
	}
	if n := len(s) - len(t); n > maxBlanks {
		return 0, malformed(line, field, "%q has %d blanks of padding, at most %d allowed", s, n, maxBlanks)
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, malformed(line, field, "%q is not a decimal number", s)
	}
	return v, nil
}

// parseImpliedExponent decodes the 8-character "±MMMMM±E" notation used for
// the second mean motion derivative and B*: " 30074-3" is 0.30074e-3.
func parseImpliedExponent(line int, field, s string) (float64, error) {
	if len(s) != 8 {
		return 0, malformed(line, field, "%q is not 8 characters", s)
	}
	sign := s[0]
	if sign != ' ' && sign != '+' && sign != '-' {
		return 0, malformed(line, field, "bad mantissa sign %q", sign)
	}
	// Five digits with an implied leading decimal point; padding would shift them.
	mantissa := s[1:6]
	if !allDigits(mantissa) {
		return 0, malformed(line, field, "bad mantissa %q", mantissa)
	}
	expSign := s[6]
	switch expSign {
	case ' ':
		expSign = '+'
	case '+', '-':
	default:
		return 0, malformed(line, field, "bad exponent sign %q", expSign)
	}
	if s[7] < '0' || s[7] > '9' {
		return 0, malformed(line, field, "bad exponent digit %q", s[7])
	}
	v, err := strconv.ParseFloat("0."+mantissa+"e"+string(expSign)+string(s[7]), 64)
	if err != nil {
		return 0, malformed(line, field, "%v", err)
	}
	if sign == '-' {
		v = -v
	}
	return v, nil
}

func parseDesignator(s string) (Designator, error) {
	if strings.TrimSpace(s) == "" {
		return Designator{}, nil
	}
	yy, err := parseInt(1, "international designator", s[0:2], false)
	if err != nil {
		return Designator{}, err
	}
	num, err := parseInt(1, "international designator", s[2:5], false)
	if err != nil {
		return Designator{}, err
	}
	return Designator{
		LaunchYear:   expandYear(yy),
		LaunchNumber: num,
		Piece:        strings.TrimSpace(s[5:]),
	}, nil
}

func formatDesignator(d Designator) string {
	return fmt.Sprintf("%04d-%03d%s", d.LaunchYear, d.LaunchNumber, d.Piece)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
