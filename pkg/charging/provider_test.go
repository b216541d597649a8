package charging

import (
	"errors"
	"testing"
	"time"

	"github.com/chargectl/chargectl/pkg/hal"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLimitProviderHardwareCeiling(t *testing.T) {
	dev := hal.NewMock(hal.ModeLimit)
	p := NewLimitProvider(dev, hal.ModeLimit)

	if !p.UpdateLimit(50, 80) {
		t.Fatal("expected active throttle")
	}
	if dev.Limit != 80 {
		t.Errorf("hardware limit = %d, want 80", dev.Limit)
	}

	// A ceiling of 100 means no throttling at all.
	if p.UpdateLimit(50, 100) {
		t.Error("expected no throttle at limit 100")
	}
	if dev.Limit != 100 {
		t.Errorf("hardware limit = %d, want 100", dev.Limit)
	}
}

func TestLimitProviderSoftwareHysteresis(t *testing.T) {
	dev := hal.NewMock(hal.ModeToggle)
	p := NewLimitProvider(dev, hal.ModeToggle)

	// Reaching the limit turns charging off.
	if !p.UpdateLimit(80, 80) {
		t.Fatal("expected active throttle")
	}
	if dev.Enabled {
		t.Error("charging should be disabled at the limit")
	}

	// A small dip stays inside the hysteresis band.
	p.UpdateLimit(79, 80)
	if dev.Enabled {
		t.Error("charging should stay disabled within the hysteresis band")
	}

	// Dropping below limit-lowerLimitDelta turns it back on.
	p.UpdateLimit(77, 80)
	if !dev.Enabled {
		t.Error("charging should resume below the lower limit")
	}
}

func TestLimitProviderResetRestoresCharging(t *testing.T) {
	dev := hal.NewMock(hal.ModeToggle)
	p := NewLimitProvider(dev, hal.ModeToggle)

	p.UpdateLimit(90, 80)
	if dev.Enabled {
		t.Fatal("charging should be disabled")
	}
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !dev.Enabled {
		t.Error("Reset should restore charging")
	}
}

func TestLimitProviderWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	dev := hal.NewMock(hal.ModeLimit)
	p := NewLimitProvider(dev, hal.ModeLimit)
	p.now = fixedNow(now)

	// Before the window: hold the charge where it is, floored at the
	// minimum hold level.
	start := now.Add(time.Hour)
	target := now.Add(3 * time.Hour)
	if !p.UpdateWindow(75, start, target, ModeManual) {
		t.Fatal("expected an active hold before the window")
	}
	if dev.Limit != 75 {
		t.Errorf("hold limit = %d, want 75", dev.Limit)
	}

	if !p.UpdateWindow(40, start, target, ModeManual) {
		t.Fatal("expected an active hold before the window")
	}
	if dev.Limit != minHoldCharge {
		t.Errorf("hold limit = %d, want %d", dev.Limit, minHoldCharge)
	}

	// Inside the window charging runs free.
	p.now = fixedNow(start.Add(time.Minute))
	if !p.UpdateWindow(75, start, target, ModeManual) {
		t.Fatal("expected active control inside the window")
	}
	if dev.Limit != 100 {
		t.Errorf("limit = %d, want 100", dev.Limit)
	}

	// Past target there is nothing left to do.
	p.now = fixedNow(target.Add(time.Minute))
	if p.UpdateWindow(100, start, target, ModeManual) {
		t.Error("expected no control past the target")
	}
}

func TestToggleProviderWindow(t *testing.T) {
	start := time.Date(2024, 5, 10, 22, 0, 0, 0, time.UTC)
	target := start.Add(8 * time.Hour)

	dev := hal.NewMock(hal.ModeToggle)
	p := NewToggleProvider(dev, hal.ModeToggle)

	// First half of the window with a half-full battery: far from the
	// release point, so charging is held off.
	p.now = fixedNow(start.Add(time.Hour))
	if !p.UpdateWindow(50, start, target, ModeManual) {
		t.Fatal("expected active control inside the window")
	}
	if dev.Enabled {
		t.Error("charging should be held before the release point")
	}

	// Close to the target the release point has passed.
	p.now = fixedNow(target.Add(-10 * time.Minute))
	if !p.UpdateWindow(95, start, target, ModeManual) {
		t.Fatal("expected active control inside the window")
	}
	if !dev.Enabled {
		t.Error("charging should be released near the target")
	}

	// Outside the window charging is always allowed.
	p.now = fixedNow(target.Add(time.Hour))
	if p.UpdateWindow(95, start, target, ModeManual) {
		t.Error("expected no control outside the window")
	}
	if !dev.Enabled {
		t.Error("charging should be allowed outside the window")
	}
}

func TestDeadlineProviderWindow(t *testing.T) {
	start := time.Date(2024, 5, 10, 22, 0, 0, 0, time.UTC)
	target := start.Add(8 * time.Hour)

	dev := hal.NewMock(hal.ModeDeadline)
	p := NewDeadlineProvider(dev, hal.ModeDeadline)

	p.now = fixedNow(start.Add(2 * time.Hour))
	if !p.UpdateWindow(50, start, target, ModeAuto) {
		t.Fatal("expected active control inside the window")
	}
	if dev.Deadline != 6*time.Hour {
		t.Errorf("deadline = %s, want 6h", dev.Deadline)
	}

	p.now = fixedNow(target.Add(time.Minute))
	if p.UpdateWindow(100, start, target, ModeAuto) {
		t.Error("expected no control past the target")
	}
	if dev.Deadline != 0 {
		t.Errorf("deadline = %s, want 0 after the window", dev.Deadline)
	}
}

func TestDeadlineProviderRejectsLimit(t *testing.T) {
	p := NewDeadlineProvider(hal.NewMock(hal.ModeDeadline), hal.ModeDeadline)
	if p.UpdateLimit(50, 80) {
		t.Error("deadline provider must not serve a percentage limit")
	}
	if p.IsModeSupported(ModeLimit) {
		t.Error("deadline provider must not report LIMIT mode as supported")
	}
}

func TestProviderCapabilityReporting(t *testing.T) {
	tests := []struct {
		name  string
		modes hal.ModeMask
		limit bool
		tog   bool
		dead  bool
	}{
		{"nothing", 0, false, false, false},
		{"toggle only", hal.ModeToggle, true, true, false},
		{"limit only", hal.ModeLimit, true, false, false},
		{"deadline only", hal.ModeDeadline, false, false, true},
		{"everything", hal.ModeToggle | hal.ModeLimit | hal.ModeDeadline, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := hal.NewMock(tt.modes)
			if got := NewLimitProvider(dev, tt.modes).IsSupported(); got != tt.limit {
				t.Errorf("limit supported = %t, want %t", got, tt.limit)
			}
			if got := NewToggleProvider(dev, tt.modes).IsSupported(); got != tt.tog {
				t.Errorf("toggle supported = %t, want %t", got, tt.tog)
			}
			if got := NewDeadlineProvider(dev, tt.modes).IsSupported(); got != tt.dead {
				t.Errorf("deadline supported = %t, want %t", got, tt.dead)
			}
		})
	}
}

func TestProviderFailurePropagation(t *testing.T) {
	dev := hal.NewMock(hal.ModeToggle)
	p := NewToggleProvider(dev, hal.ModeToggle)

	dev.FailNext = errors.New("io failure")
	if p.UpdateLimit(90, 80) {
		t.Error("expected failure to be reported as no control")
	}
	// The next call retries and succeeds.
	if !p.UpdateLimit(90, 80) {
		t.Error("expected the retry to succeed")
	}
	if dev.Enabled {
		t.Error("charging should be disabled after the retry")
	}
}
