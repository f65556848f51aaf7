package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// catalogServer serves body while healthy is true, 503 otherwise.
type catalogServer struct {
	*httptest.Server
	hits    atomic.Int32
	healthy atomic.Bool
}

func newCatalogServer(t *testing.T, body string) *catalogServer {
	t.Helper()
	cs := &catalogServer{}
	cs.healthy.Store(true)
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		if !cs.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

var listNow = time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)

func TestListAnnotatesAge(t *testing.T) {
	srv := newCatalogServer(t, issEntry+geoEntry+debEntry)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger)

	l, err := p.List(context.Background(), 0, listNow)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if l.Total != 3 || len(l.Satellites) != 3 {
		t.Fatalf("got %d/%d satellites, want 3", len(l.Satellites), l.Total)
	}
	if l.Source != SourceLive {
		t.Errorf("Source = %s, want live", l.Source)
	}

	iss := l.Satellites[0]
	if iss.NoradID != 25544 || iss.Name != "ISS (ZARYA)" {
		t.Errorf("first entry = %d %q", iss.NoradID, iss.Name)
	}
	if !iss.TLEInfo.IsStale || iss.TLEInfo.Warning == "" {
		t.Errorf("ten-day-old entry not flagged: %+v", iss.TLEInfo)
	}
	if iss.TLEInfo.AgeDays < 9.9 || iss.TLEInfo.AgeDays > 10 {
		t.Errorf("AgeDays = %.3f, want just under 10", iss.TLEInfo.AgeDays)
	}
}

func TestListLimit(t *testing.T) {
	srv := newCatalogServer(t, issEntry+geoEntry+debEntry)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger)

	l, err := p.List(context.Background(), 2, listNow)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(l.Satellites) != 2 || l.Total != 3 {
		t.Errorf("got %d satellites of %d, want 2 of 3", len(l.Satellites), l.Total)
	}
}

func TestListServesFromMemory(t *testing.T) {
	srv := newCatalogServer(t, issEntry+debEntry)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger)

	for i := 0; i < 3; i++ {
		if _, err := p.List(context.Background(), 0, listNow); err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}

	l, _ := p.List(context.Background(), 0, listNow)
	if l.Source != SourceMemory {
		t.Errorf("Source = %s, want memory", l.Source)
	}
}

func TestListFallsBackToSnapshot(t *testing.T) {
	dir := t.TempDir()
	srv := newCatalogServer(t, issEntry+geoEntry)

	warm := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger, WithSnapshots(NewSnapshots(dir, 3)))
	if _, err := warm.List(context.Background(), 0, listNow); err != nil {
		t.Fatalf("warm List: %v", err)
	}

	srv.healthy.Store(false)
	cold := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger, WithSnapshots(NewSnapshots(dir, 3)))
	l, err := cold.List(context.Background(), 0, listNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("List with upstream down: %v", err)
	}
	if l.Source != SourceSnapshot {
		t.Errorf("Source = %s, want snapshot", l.Source)
	}
	if l.Total != 2 {
		t.Errorf("Total = %d, want 2", l.Total)
	}
	if !l.FetchedAt.Equal(listNow) {
		t.Errorf("FetchedAt = %v, want %v", l.FetchedAt, listNow)
	}
}

func TestListUnavailable(t *testing.T) {
	srv := newCatalogServer(t, issEntry)
	srv.healthy.Store(false)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger, WithSnapshots(NewSnapshots(t.TempDir(), 3)))

	_, err := p.List(context.Background(), 0, listNow)
	if err == nil {
		t.Fatal("expected an error with no upstream and no snapshot")
	}
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want it to wrap ErrNoSnapshot", err)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want it to wrap ErrUnavailable", err)
	}
}

func TestListSkipsInvalidEntries(t *testing.T) {
	broken := "BROKEN\n1 99999U 00000A   24035.50000000  .00000000  00000-0  00000-0 0  0000\n2 99999   0.0000   0.0000 0000000   0.0000   0.0000  1.00000000    00\n"
	srv := newCatalogServer(t, issEntry+broken+debEntry)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger)

	l, err := p.List(context.Background(), 0, listNow)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if l.Total != 2 {
		t.Errorf("Total = %d, want 2", l.Total)
	}
}

type refreshLog struct {
	sources []string
}

func (r *refreshLog) ObserveCatalogRefresh(source string, _ int, _ time.Time, _ error) {
	r.sources = append(r.sources, source)
}

func TestRefreshObserved(t *testing.T) {
	srv := newCatalogServer(t, issEntry)
	obs := &refreshLog{}
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger, WithObserver(obs))

	n, err := p.Refresh(context.Background(), listNow)
	if err != nil || n != 1 {
		t.Fatalf("Refresh = %d, %v", n, err)
	}
	if _, err := p.Refresh(context.Background(), listNow); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got := srv.hits.Load(); got != 2 {
		t.Errorf("upstream hit %d times, want 2", got)
	}
	if len(obs.sources) != 2 || obs.sources[0] != "live" {
		t.Errorf("observed %v", obs.sources)
	}
}

func TestSnapshotsPrune(t *testing.T) {
	dir := t.TempDir()
	s := NewSnapshots(dir, 2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := s.Write([]byte(issEntry), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, snapshotPrefix+"*"+snapshotSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("kept %d snapshots, want 2", len(files))
	}

	_, ts, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !ts.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("latest = %v", ts)
	}
}

func TestSnapshotsIgnoreForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewSnapshots(dir, 2).LoadLatest(); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestLookup(t *testing.T) {
	srv := newCatalogServer(t, issEntry+geoEntry+debEntry)
	p := NewCelesTrak(NewFetcher(srv.URL, testLogger), testLogger)

	sat, err := p.Lookup(context.Background(), 28884, listNow)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if sat.Name != "INTELSAT 10-02" {
		t.Errorf("Name = %q", sat.Name)
	}

	if _, err := p.Lookup(context.Background(), 1, listNow); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
