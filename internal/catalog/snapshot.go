package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	snapshotPrefix = "catalog_"
	snapshotSuffix = ".tle"
)

// Snapshots keeps the last few raw catalog downloads on disk so a listing
// can still be served when the upstream source is unreachable.
type Snapshots struct {
	dir      string
	maxFiles int
}

// NewSnapshots stores files in dir and keeps at most maxFiles.
func NewSnapshots(dir string, maxFiles int) *Snapshots {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Snapshots{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data under a timestamped name and prunes older snapshots.
func (s *Snapshots) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", snapshotPrefix, ts.Unix(), snapshotSuffix)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return s.prune()
}

// ErrNoSnapshot is returned by LoadLatest when nothing has been written yet.
var ErrNoSnapshot = errors.New("no catalog snapshot found")

// LoadLatest reads the newest snapshot and the time it was taken.
func (s *Snapshots) LoadLatest() ([]byte, time.Time, error) {
	files, err := s.list()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoSnapshot
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return data, latest.ts, nil
}

type snapshotFile struct {
	name string
	ts   time.Time
}

// list returns snapshots oldest first.
func (s *Snapshots) list() ([]snapshotFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshot dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (s *Snapshots) prune() error {
	files, err := s.list()
	if err != nil {
		return err
	}
	if len(files) <= s.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", f.name, err)
		}
	}
	return nil
}
