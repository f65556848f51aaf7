package tle

// LineLength is the fixed width of both TLE lines, checksum included.
const LineLength = 69

// Checksum computes the modulo-10 checksum of the first 68 characters of a
// line. Digits count at face value, '-' counts as 1, everything else as 0.
func Checksum(line string) int {
	n := len(line)
	if n > LineLength-1 {
		n = LineLength - 1
	}
	sum := 0
	for i := 0; i < n; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ValidChecksum reports whether the 69th character of line matches Checksum.
func ValidChecksum(line string) bool {
	if len(line) < LineLength {
		return false
	}
	c := line[LineLength-1]
	if c < '0' || c > '9' {
		return false
	}
	return int(c-'0') == Checksum(line)
}
