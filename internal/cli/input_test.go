package cli

import (
	"strings"
	"testing"
)

func TestReadRequests(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantCount int
		wantName  string
		wantID    string
	}{
		{"three line", "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n", 1, "ISS (ZARYA)", "25544"},
		{"two line", issLine1 + "\n" + issLine2, 1, "", "25544"},
		{"zero-prefixed title", "0 ISS (ZARYA)\n" + issLine1 + "\n" + issLine2, 1, "ISS (ZARYA)", "25544"},
		{"json array", `[{"line1":"a","line2":"b","satellite_name":"X"}]`, 1, "X", ""},
		{"json items", `{"items":[{"line1":"a","line2":"b"},{"line1":"c","line2":"d"}]}`, 2, "", ""},
		{"dangling line 1", issLine1 + "\nNEXT\n" + issLine1 + "\n" + issLine2, 2, "", "25544"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := readRequests(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("readRequests: %v", err)
			}
			if len(reqs) != tt.wantCount {
				t.Fatalf("got %d requests, want %d", len(reqs), tt.wantCount)
			}
			if reqs[0].SatelliteName != tt.wantName {
				t.Errorf("name = %q, want %q", reqs[0].SatelliteName, tt.wantName)
			}
			if reqs[0].ID != tt.wantID {
				t.Errorf("id = %q, want %q", reqs[0].ID, tt.wantID)
			}
		})
	}
}

func TestReadRequestsEmpty(t *testing.T) {
	if _, err := readRequests(strings.NewReader("  \n")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestReadRequestsOverlongLine(t *testing.T) {
	in := issLine1 + "\n" + issLine2 + "\n" + strings.Repeat("X", 70*1024) + "\n" + issLine1 + "\n" + issLine2
	reqs, err := readRequests(strings.NewReader(in))
	if err == nil {
		t.Fatalf("expected error, got %d requests", len(reqs))
	}
	if !strings.Contains(err.Error(), "read TLE text") {
		t.Errorf("error = %v, want a read TLE text error", err)
	}
}
