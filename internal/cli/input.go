package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
)

// openInput opens path for reading; "-" is stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readRequests decodes classification requests from r. JSON input is either
// an array of requests or {"items": [...]}. Anything else is read as TLE
// text: each line-1/line-2 pair becomes one request, named by a preceding
// title line when there is one. Malformed pairs are kept so the engine can
// report them.
func readRequests(r io.Reader) ([]engine.Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	switch trimmed[0] {
	case '[':
		var reqs []engine.Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, fmt.Errorf("decode JSON requests: %w", err)
		}
		return reqs, nil
	case '{':
		var body struct {
			Items []engine.Request `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, fmt.Errorf("decode JSON requests: %w", err)
		}
		return body.Items, nil
	}
	return splitTLEText(trimmed)
}

func splitTLEText(data []byte) ([]engine.Request, error) {
	var (
		reqs []engine.Request
		name string
		cur  *engine.Request
	)
	flush := func() {
		if cur != nil {
			reqs = append(reqs, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "1 "):
			flush()
			cur = &engine.Request{Line1: line, SatelliteName: name, ID: catalogField(line)}
			name = ""
		case strings.HasPrefix(line, "2 ") && cur != nil && cur.Line2 == "":
			cur.Line2 = line
			flush()
		default:
			flush()
			name = strings.TrimPrefix(line, "0 ")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read TLE text: %w", err)
	}
	flush()
	return reqs, nil
}

// catalogField extracts the NORAD number from columns 3-7 of line 1 for use
// as a request ID.
func catalogField(line1 string) string {
	if len(line1) < 7 {
		return ""
	}
	return strings.TrimSpace(line1[2:7])
}
