package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/propagation"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
	"github.com/totoccar/SpaceSituationalAwareness/internal/transform"
)

const (
	issLine1 = "1 25544U 98067A   24035.54791667  .00016717  00000-0  30074-3 0  9998"
	issLine2 = "2 25544  51.6426  35.3018 0002080  34.7781 325.3493 15.49856913438562"

	geoLine1 = "1 28884U 05041A   24035.50000000 -.00000283  00000-0  00000+0 0  9992"
	geoLine2 = "2 28884   0.0150 271.7000 0002000 120.0000 330.0000  1.00272000 68002"
)

func extract(t *testing.T, l1, l2 string) Set {
	t.Helper()
	es, err := tle.Parse(l1, l2)
	if err != nil {
		t.Fatalf("tle.Parse: %v", err)
	}
	sv, err := propagation.Propagate(es, es.Epoch)
	if err != nil {
		t.Fatalf("propagation.Propagate: %v", err)
	}
	fs, err := Extract(sv, es)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return fs
}

func TestExtractISS(t *testing.T) {
	fs := extract(t, issLine1, issLine2)

	if fs.Region != LEO {
		t.Errorf("Region = %s, want LEO", fs.Region)
	}
	if fs.AltitudeKm < 390 || fs.AltitudeKm > 430 {
		t.Errorf("AltitudeKm = %.1f, want ~400-420", fs.AltitudeKm)
	}
	if inc, _ := fs.Get(InclinationDeg); inc != 51.6426 {
		t.Errorf("inclination = %v, want 51.6426", inc)
	}
	if p, _ := fs.Get(PeriodMin); math.Abs(p-92.91) > 0.01 {
		t.Errorf("period = %.3f, want ~92.91", p)
	}
	lat, ok := fs.Get(LatitudeDeg)
	if !ok || math.Abs(lat) > 52.0 {
		t.Errorf("latitude = %.3f (present=%v), must not exceed the inclination", lat, ok)
	}
	for _, k := range []string{Eccentricity, MeanMotion, SemiMajorAxisKm, PerigeeAltKm, ApogeeAltKm, BStar, MeanMotionDot, LongitudeDeg, TrueAnomalyDeg, AltitudeKm, SpeedKms} {
		if _, ok := fs.Get(k); !ok {
			t.Errorf("missing named feature %s", k)
		}
	}
}

func TestExtractGEO(t *testing.T) {
	fs := extract(t, geoLine1, geoLine2)
	if fs.Region != GEO {
		t.Errorf("Region = %s (alt %.1f km), want GEO", fs.Region, fs.AltitudeKm)
	}
	if fs.SpeedKms < 3.0 || fs.SpeedKms > 3.15 {
		t.Errorf("SpeedKms = %.3f, want ~3.07", fs.SpeedKms)
	}
}

func TestExtractInvalidState(t *testing.T) {
	es := &tle.ElementSet{MeanMotion: 15.5}
	tests := []struct {
		name string
		sv   propagation.StateVector
	}{
		{"NaN position", propagation.StateVector{Position: transform.Vec3{X: math.NaN()}, Velocity: transform.Vec3{Y: 7}}},
		{"Inf velocity", propagation.StateVector{Position: transform.Vec3{X: 6800}, Velocity: transform.Vec3{Z: math.Inf(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.sv.At = time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
			_, err := Extract(tt.sv, es)
			var fe *Error
			if !errors.As(err, &fe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if fe.Kind != InvalidState {
				t.Errorf("Kind = %s, want InvalidState", fe.Kind)
			}
		})
	}
}

func TestRegionFor(t *testing.T) {
	tests := []struct {
		name   string
		alt    float64
		period float64
		want   Region
	}{
		{"ISS", 417, 92.9, LEO},
		{"just below LEO ceiling", 1999.9, 127, LEO},
		{"LEO ceiling", 2000, 127, MEO},
		{"GPS", 20200, 718, MEO},
		{"GEO nominal", 35786, 1436.1, GEO},
		{"GEO lower tolerance", 35586, 1420, GEO},
		{"GEO upper tolerance", 35986, 1450, GEO},
		{"transfer orbit through the belt", 35700, 640, MEO},
		{"above the belt", 36100, 1460, Unknown},
		{"graveyard", 36200, 1475, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegionFor(tt.alt, tt.period); got != tt.want {
				t.Errorf("RegionFor(%g, %g) = %s, want %s", tt.alt, tt.period, got, tt.want)
			}
		})
	}
}

func TestWithCopies(t *testing.T) {
	base := Set{Named: map[string]float64{AltitudeKm: 400}}
	ext := base.With(TLEAgeDays, 2)
	if _, ok := base.Get(TLEAgeDays); ok {
		t.Error("With mutated the original set")
	}
	if v, _ := ext.Get(TLEAgeDays); v != 2 {
		t.Errorf("extended feature = %v, want 2", v)
	}
}
