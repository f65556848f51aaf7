package age

import (
	"testing"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
)

var epoch = time.Date(2024, 2, 4, 13, 9, 0, 0, time.UTC)

func TestEvaluateStalenessBoundary(t *testing.T) {
	es := &tle.ElementSet{Epoch: epoch}

	atCutoff := Evaluate(es, epoch.Add(72*time.Hour))
	if atCutoff.IsStale {
		t.Error("exactly 72h old must not be stale")
	}
	if atCutoff.AgeHours != 72 {
		t.Errorf("AgeHours = %v, want 72", atCutoff.AgeHours)
	}

	past := Evaluate(es, epoch.Add(72*time.Hour+time.Microsecond))
	if !past.IsStale {
		t.Error("72h + 1µs old must be stale")
	}
}

func TestEvaluateTenDaysOld(t *testing.T) {
	info := Evaluate(&tle.ElementSet{Epoch: epoch}, epoch.Add(10*24*time.Hour))
	if !info.IsStale {
		t.Error("10 day old element set not flagged stale")
	}
	if info.Warning == "" {
		t.Error("expected a warning for a 10 day old element set")
	}
	if info.AgeDays != 10 {
		t.Errorf("AgeDays = %v, want 10", info.AgeDays)
	}
}

func TestEvaluateWarningTiers(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		wantStale bool
		wantWarn  bool
	}{
		{"at epoch", 0, false, false},
		{"six hours", 6 * time.Hour, false, false},
		{"exactly soft cutoff", 12 * time.Hour, false, false},
		{"past soft cutoff", 13 * time.Hour, false, true},
		{"two days", 48 * time.Hour, false, true},
		{"four days", 96 * time.Hour, true, true},
		{"thirty days", 30 * 24 * time.Hour, true, true},
		{"future epoch", -5 * time.Hour, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := FromEpoch(epoch, epoch.Add(tt.age))
			if info.IsStale != tt.wantStale {
				t.Errorf("IsStale = %v, want %v", info.IsStale, tt.wantStale)
			}
			if (info.Warning != "") != tt.wantWarn {
				t.Errorf("Warning = %q, want present=%v", info.Warning, tt.wantWarn)
			}
		})
	}
}

func TestEvaluateDaysAreHoursOver24(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second, 37*time.Hour + 13*time.Minute, -3 * time.Hour} {
		info := FromEpoch(epoch, epoch.Add(d))
		if info.AgeDays != info.AgeHours/24 {
			t.Errorf("age %v: AgeDays = %v, AgeHours/24 = %v", d, info.AgeDays, info.AgeHours/24)
		}
	}
}

func TestEvaluateFutureEpochIsNegative(t *testing.T) {
	info := FromEpoch(epoch, epoch.Add(-2*time.Hour))
	if info.AgeHours != -2 {
		t.Errorf("AgeHours = %v, want -2", info.AgeHours)
	}
}
