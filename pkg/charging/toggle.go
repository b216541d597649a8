package charging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/hal"
)

const (
	// assumedFullChargeTime is how long charging from empty to full is
	// assumed to take when estimating the release point.
	assumedFullChargeTime = 3 * time.Hour
	// releaseMargin is added to the estimate so charging finishes a
	// little before the target rather than a little after.
	releaseMargin = 10 * time.Minute
)

// ToggleProvider is the plain on/off strategy: hold charging until the
// last moment that still reaches full by the target, then switch it on.
// No rate pacing, only the toggle.
type ToggleProvider struct {
	dev   hal.ChargingControl
	modes hal.ModeMask
	now   func() time.Time

	mu              sync.Mutex
	enabled         bool
	chargingAllowed bool
}

func NewToggleProvider(dev hal.ChargingControl, modes hal.ModeMask) *ToggleProvider {
	return &ToggleProvider{dev: dev, modes: modes, now: time.Now, chargingAllowed: true}
}

func (p *ToggleProvider) IsSupported() bool { return p.modes.Has(hal.ModeToggle) }

func (p *ToggleProvider) RequiresBatteryLevelMonitoring() bool { return true }

func (p *ToggleProvider) IsModeSupported(m Mode) bool {
	return m == ModeLimit || m == ModeAuto || m == ModeManual
}

func (p *ToggleProvider) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
	return nil
}

func (p *ToggleProvider) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled && p.chargingAllowed {
		return nil
	}
	p.enabled = false
	return p.allowCharging(true)
}

func (p *ToggleProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	return p.allowCharging(true)
}

func (p *ToggleProvider) allowCharging(allowed bool) error {
	if err := p.dev.SetChargingEnabled(allowed); err != nil {
		return err
	}
	p.chargingAllowed = allowed
	return nil
}

// UpdateLimit is the fallback for LIMIT mode: the same hysteresis logic
// the limit provider uses in software.
func (p *ToggleProvider) UpdateLimit(batteryPct float64, limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit >= 100 {
		if err := p.allowCharging(true); err != nil {
			logrus.Errorf("failed to enable charging: %v", err)
		}
		return false
	}

	if batteryPct >= float64(limit) && p.chargingAllowed {
		if err := p.allowCharging(false); err != nil {
			logrus.Errorf("failed to disable charging: %v", err)
			return false
		}
	} else if batteryPct < float64(limit-lowerLimitDelta) && !p.chargingAllowed {
		if err := p.allowCharging(true); err != nil {
			logrus.Errorf("failed to enable charging: %v", err)
			return false
		}
	}

	return true
}

func (p *ToggleProvider) UpdateWindow(batteryPct float64, start, target time.Time, m Mode) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Before(start) || now.After(target) {
		if err := p.allowCharging(true); err != nil {
			logrus.Errorf("failed to restore charging: %v", err)
		}
		return false
	}

	// Latest point at which switching charging on still reaches full
	// by the target, assuming a linear charge rate.
	needed := time.Duration(float64(assumedFullChargeTime) * (100 - batteryPct) / 100)
	releaseAt := target.Add(-needed - releaseMargin)

	shouldCharge := !now.Before(releaseAt)
	if shouldCharge != p.chargingAllowed {
		logrus.WithFields(logrus.Fields{
			"batteryPct":   batteryPct,
			"shouldCharge": shouldCharge,
			"releaseAt":    releaseAt.Format(time.RFC3339),
		}).Info("toggling charging for charge window")
		if err := p.allowCharging(shouldCharge); err != nil {
			logrus.Errorf("failed to toggle charging: %v", err)
			return false
		}
	}

	return true
}

func (p *ToggleProvider) Dump(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(w, "Provider: toggle")
	fmt.Fprintf(w, "  enabled: %t\n", p.enabled)
	fmt.Fprintf(w, "  chargingAllowed: %t\n", p.chargingAllowed)
}
