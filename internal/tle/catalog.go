package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseCatalog reads the 3-line "name / line 1 / line 2" format served by
// catalog sources such as CelesTrak. Entries that fail validation are skipped
// with a warning; the scan resynchronises on the next line-1 marker.
func ParseCatalog(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := lines[i], lines[i+1], lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		es, err := Parse(line1, line2)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i += 3
			continue
		}

		entries = append(entries, Entry{Name: name, Elements: es})
		i += 3
	}

	return entries, nil
}
