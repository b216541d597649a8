package charging

import (
	"testing"
	"time"

	"github.com/chargectl/chargectl/pkg/alarm"
)

func TestComputeChargeTimeManual(t *testing.T) {
	loc := time.UTC
	day := func(d, h, m int) time.Time {
		return time.Date(2024, 5, d, h, m, 0, 0, loc)
	}

	tests := []struct {
		name        string
		now         time.Time
		startOfDay  int
		targetOfDay int
		wantStart   time.Time
		wantTarget  time.Time
	}{
		{
			name:        "window spans midnight, before target",
			now:         day(10, 23, 0),
			startOfDay:  22 * 3600,
			targetOfDay: 6 * 3600,
			wantStart:   day(10, 22, 0),
			wantTarget:  day(11, 6, 0),
		},
		{
			name:        "window spans midnight, inside early morning",
			now:         day(10, 5, 0),
			startOfDay:  22 * 3600,
			targetOfDay: 6 * 3600,
			wantStart:   day(9, 22, 0),
			wantTarget:  day(10, 6, 0),
		},
		{
			name:        "same-day window not yet reached",
			now:         day(10, 7, 0),
			startOfDay:  8 * 3600,
			targetOfDay: 10 * 3600,
			wantStart:   day(10, 8, 0),
			wantTarget:  day(10, 10, 0),
		},
		{
			name:        "same-day window already elapsed",
			now:         day(10, 11, 0),
			startOfDay:  8 * 3600,
			targetOfDay: 10 * 3600,
			wantStart:   day(11, 8, 0),
			wantTarget:  day(11, 10, 0),
		},
		{
			name:        "exactly at target shifts forward",
			now:         day(10, 10, 0),
			startOfDay:  8 * 3600,
			targetOfDay: 10 * 3600,
			wantStart:   day(11, 8, 0),
			wantTarget:  day(11, 10, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := computeChargeTime(ModeManual, tt.now, nil, tt.startOfDay, tt.targetOfDay)
			if ct == nil {
				t.Fatal("computeChargeTime returned nil")
			}
			if !ct.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", ct.Start, tt.wantStart)
			}
			if !ct.Target.Equal(tt.wantTarget) {
				t.Errorf("target = %v, want %v", ct.Target, tt.wantTarget)
			}
		})
	}
}

func TestComputeChargeTimeAuto(t *testing.T) {
	now := time.Date(2024, 5, 10, 21, 0, 0, 0, time.UTC)

	t.Run("no alarm scheduled", func(t *testing.T) {
		ct := computeChargeTime(ModeAuto, now, &alarm.Fixed{}, 0, 0)
		if ct != nil {
			t.Fatalf("expected no plan without an alarm, got %+v", ct)
		}
	})

	t.Run("alarm sets target", func(t *testing.T) {
		next := now.Add(10 * time.Hour)
		ct := computeChargeTime(ModeAuto, now, &alarm.Fixed{At: next, Set: true}, 0, 0)
		if ct == nil {
			t.Fatal("computeChargeTime returned nil")
		}
		if !ct.Target.Equal(next) {
			t.Errorf("target = %v, want %v", ct.Target, next)
		}
		if !ct.Start.Equal(next.Add(-autoLeadTime)) {
			t.Errorf("start = %v, want %v", ct.Start, next.Add(-autoLeadTime))
		}
	})
}

func TestComputeChargeTimeInvalidMode(t *testing.T) {
	now := time.Now()
	if ct := computeChargeTime(ModeNone, now, nil, 0, 0); ct != nil {
		t.Errorf("expected nil for mode none, got %+v", ct)
	}
	if ct := computeChargeTime(ModeLimit, now, nil, 0, 0); ct != nil {
		t.Errorf("expected nil for mode limit, got %+v", ct)
	}
}
