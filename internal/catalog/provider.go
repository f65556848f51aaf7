// Package catalog lists satellites from an external TLE source for browsing.
// The classification core never calls it; it only feeds the listing
// endpoint and the CLI.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/totoccar/SpaceSituationalAwareness/internal/age"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
)

const tracerName = "github.com/totoccar/SpaceSituationalAwareness/internal/catalog"

// Source tells where a listing came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceMemory   Source = "memory"
	SourceSnapshot Source = "snapshot"
)

// Satellite is one browsable catalog entry.
type Satellite struct {
	NoradID int      `json:"norad_id" yaml:"norad_id"`
	Name    string   `json:"name" yaml:"name"`
	Line1   string   `json:"line1" yaml:"line1"`
	Line2   string   `json:"line2" yaml:"line2"`
	TLEInfo age.Info `json:"tle_info" yaml:"tle_info"`
}

// Listing is a page of the catalog.
type Listing struct {
	Satellites []Satellite `json:"satellites" yaml:"satellites"`
	Total      int         `json:"total" yaml:"total"`
	Source     Source      `json:"source" yaml:"source"`
	FetchedAt  time.Time   `json:"fetched_at" yaml:"fetched_at"`
}

// Provider lists catalog entries, annotating each with its age at now.
type Provider interface {
	List(ctx context.Context, limit int, now time.Time) (*Listing, error)
	Lookup(ctx context.Context, noradID int, now time.Time) (*Satellite, error)
}

var (
	// ErrNotFound is returned by Lookup for an unknown catalog number.
	ErrNotFound = errors.New("satellite not in catalog")
	// ErrUnavailable means neither the upstream nor a snapshot could serve.
	ErrUnavailable = errors.New("catalog unavailable")
)

// Observer is told about every refresh attempt.
type Observer interface {
	ObserveCatalogRefresh(source string, size int, fetchedAt time.Time, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCatalogRefresh(string, int, time.Time, error) {}

const (
	// DefaultTTL is how long a live download is served from memory.
	DefaultTTL = 2 * time.Hour
	// snapshotTTL is shorter so a recovered upstream is retried soon.
	snapshotTTL = 10 * time.Minute

	entriesKey = "entries"
)

type cached struct {
	entries   []tle.Entry
	fetchedAt time.Time
	source    Source
}

// CelesTrak is a Provider backed by a Fetcher, an in-memory TTL cache and
// on-disk snapshots used as a fallback.
type CelesTrak struct {
	fetcher   *Fetcher
	snapshots *Snapshots
	mem       *gocache.Cache
	ttl       time.Duration
	logger    *slog.Logger
	observer  Observer

	refreshMu sync.Mutex
}

// Option configures a CelesTrak provider.
type Option func(*CelesTrak)

// WithTTL sets the in-memory TTL of a live download.
func WithTTL(ttl time.Duration) Option {
	return func(c *CelesTrak) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSnapshots enables the on-disk fallback.
func WithSnapshots(s *Snapshots) Option {
	return func(c *CelesTrak) { c.snapshots = s }
}

// WithObserver reports refreshes to o.
func WithObserver(o Observer) Option {
	return func(c *CelesTrak) { c.observer = o }
}

// NewCelesTrak returns a provider fetching through f.
func NewCelesTrak(f *Fetcher, logger *slog.Logger, opts ...Option) *CelesTrak {
	c := &CelesTrak{
		fetcher:  f,
		ttl:      DefaultTTL,
		logger:   logger,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mem = gocache.New(c.ttl, c.ttl/2)
	return c
}

// List implements Provider. A limit of zero or less returns everything.
func (c *CelesTrak) List(ctx context.Context, limit int, now time.Time) (*Listing, error) {
	snap, err := c.load(ctx, now)
	if err != nil {
		return nil, err
	}

	n := len(snap.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	sats := make([]Satellite, 0, n)
	for _, e := range snap.entries[:n] {
		sats = append(sats, satellite(e, now))
	}

	return &Listing{
		Satellites: sats,
		Total:      len(snap.entries),
		Source:     snap.source,
		FetchedAt:  snap.fetchedAt,
	}, nil
}

// Lookup implements Provider.
func (c *CelesTrak) Lookup(ctx context.Context, noradID int, now time.Time) (*Satellite, error) {
	snap, err := c.load(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, e := range snap.entries {
		if e.Elements.CatalogNumber == noradID {
			sat := satellite(e, now)
			return &sat, nil
		}
	}
	return nil, fmt.Errorf("NORAD %d: %w", noradID, ErrNotFound)
}

func satellite(e tle.Entry, now time.Time) Satellite {
	return Satellite{
		NoradID: e.Elements.CatalogNumber,
		Name:    e.Name,
		Line1:   e.Elements.Line1,
		Line2:   e.Elements.Line2,
		TLEInfo: age.FromEpoch(e.Elements.Epoch, now),
	}
}

// Refresh drops the in-memory copy and downloads again.
func (c *CelesTrak) Refresh(ctx context.Context, now time.Time) (int, error) {
	c.mem.Delete(entriesKey)
	snap, err := c.load(ctx, now)
	if err != nil {
		return 0, err
	}
	if snap.source != SourceLive {
		return len(snap.entries), fmt.Errorf("upstream unavailable, serving %s from %s", snap.source, snap.fetchedAt.Format(time.RFC3339))
	}
	return len(snap.entries), nil
}

func (c *CelesTrak) load(ctx context.Context, now time.Time) (cached, error) {
	if snap, ok := c.fromMemory(); ok {
		return snap, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if snap, ok := c.fromMemory(); ok {
		return snap, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "catalog.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("catalog.source_url", c.fetcher.SourceURL()))

	snap, fetchErr := c.fetchLive(ctx, now)
	if fetchErr == nil {
		c.mem.Set(entriesKey, snap, c.ttl)
		c.observer.ObserveCatalogRefresh(string(SourceLive), len(snap.entries), snap.fetchedAt, nil)
		span.SetAttributes(attribute.Int("catalog.entries", len(snap.entries)))
		return snap, nil
	}

	c.logger.Warn("catalog fetch failed, trying snapshot", "error", fetchErr)
	span.RecordError(fetchErr)

	snap, err := c.loadSnapshot()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(fetchErr, err))
		c.observer.ObserveCatalogRefresh(string(SourceLive), 0, time.Time{}, err)
		span.SetStatus(codes.Error, err.Error())
		return cached{}, err
	}

	c.mem.Set(entriesKey, snap, snapshotTTL)
	c.observer.ObserveCatalogRefresh(string(SourceSnapshot), len(snap.entries), snap.fetchedAt, fetchErr)
	span.SetAttributes(
		attribute.Int("catalog.entries", len(snap.entries)),
		attribute.Bool("catalog.fallback", true),
	)
	return snap, nil
}

func (c *CelesTrak) fromMemory() (cached, bool) {
	v, ok := c.mem.Get(entriesKey)
	if !ok {
		return cached{}, false
	}
	snap := v.(cached)
	if snap.source == SourceLive {
		snap.source = SourceMemory
	}
	return snap, true
}

func (c *CelesTrak) fetchLive(ctx context.Context, now time.Time) (cached, error) {
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return cached{}, err
	}
	entries, err := tle.ParseCatalog(bytes.NewReader(data), c.logger)
	if err != nil {
		return cached{}, err
	}
	if len(entries) == 0 {
		return cached{}, errors.New("catalog source returned no valid entries")
	}

	if c.snapshots != nil {
		if err := c.snapshots.Write(data, now); err != nil {
			c.logger.Warn("writing catalog snapshot failed", "error", err)
		}
	}

	c.logger.Info("catalog refreshed",
		"entries", len(entries),
		"source", c.fetcher.SourceURL(),
	)
	return cached{entries: entries, fetchedAt: now.UTC(), source: SourceLive}, nil
}

func (c *CelesTrak) loadSnapshot() (cached, error) {
	if c.snapshots == nil {
		return cached{}, ErrNoSnapshot
	}
	data, ts, err := c.snapshots.LoadLatest()
	if err != nil {
		return cached{}, err
	}
	entries, err := tle.ParseCatalog(bytes.NewReader(data), c.logger)
	if err != nil {
		return cached{}, err
	}
	c.logger.Info("serving catalog snapshot", "entries", len(entries), "taken_at", ts)
	return cached{entries: entries, fetchedAt: ts, source: SourceSnapshot}, nil
}
