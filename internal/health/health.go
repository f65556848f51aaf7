// Package health serves liveness and readiness probes.
package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Reference element set used by the startup self-test (ISS, 2024-02-04).
const (
	referenceLine1 = "1 25544U 98067A   24035.54791667  .00016717  00000-0  30074-3 0  9998"
	referenceLine2 = "2 25544  51.6426  35.3018 0002080  34.7781 325.3493 15.49856913438562"
)

var referenceEpoch = time.Date(2024, 2, 4, 13, 9, 0, 0, time.UTC)

// SelfTest runs the full pipeline on a known element set and checks the
// result is physically sensible.
func SelfTest(e *engine.Engine) error {
	resp, err := e.Classify(engine.Request{Line1: referenceLine1, Line2: referenceLine2}, referenceEpoch)
	if err != nil {
		return fmt.Errorf("reference classification failed: %w", err)
	}
	if resp.Region != features.LEO || resp.OrbitalStats.AltitudeKm < 380 || resp.OrbitalStats.AltitudeKm > 440 {
		return fmt.Errorf("reference orbit implausible: region %s, altitude %.1f km", resp.Region, resp.OrbitalStats.AltitudeKm)
	}
	return nil
}

// Checker tracks readiness and reports service status.
type Checker struct {
	version string
	started time.Time
	ready   atomic.Bool
	reason  atomic.Value // string
}

// NewChecker starts in the not-ready state.
func NewChecker(version string, started time.Time) *Checker {
	c := &Checker{version: version, started: started}
	c.reason.Store("starting")
	return c
}

// MarkReady flips readiness on.
func (c *Checker) MarkReady() {
	c.ready.Store(true)
	c.reason.Store("")
}

// MarkNotReady flips readiness off with a reason.
func (c *Checker) MarkNotReady(reason string) {
	c.ready.Store(false)
	c.reason.Store(reason)
}

// Ready reports the current state.
func (c *Checker) Ready() bool { return c.ready.Load() }

// Readyz returns 200 "ready\n" once the self-test passed, 503 otherwise.
func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !c.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "not ready: %s\n", c.reason.Load())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

type status struct {
	Status        string `json:"status"`
	ModelVersion  string `json:"model_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health is the JSON status endpoint consumed by the UI.
func (c *Checker) Health(w http.ResponseWriter, r *http.Request) {
	st := status{
		Status:        "ok",
		ModelVersion:  c.version,
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
	}
	code := http.StatusOK
	if !c.ready.Load() {
		st.Status = "starting"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(st)
}
