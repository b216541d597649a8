package charging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/hal"
)

// lowerLimitDelta is the hysteresis margin: once charging stops at the
// limit, it resumes only after the charge drops this far below it.
const lowerLimitDelta = 2

// minHoldCharge is the lowest ceiling a window hold will cap at.
const minHoldCharge = 60

// LimitProvider throttles charging at a percentage ceiling. When the
// hardware has a native charge limit the ceiling is pushed down to it;
// otherwise charging is toggled in software with a hysteresis margin.
type LimitProvider struct {
	dev   hal.ChargingControl
	modes hal.ModeMask
	now   func() time.Time

	mu              sync.Mutex
	enabled         bool
	chargingAllowed bool
}

func NewLimitProvider(dev hal.ChargingControl, modes hal.ModeMask) *LimitProvider {
	return &LimitProvider{dev: dev, modes: modes, now: time.Now, chargingAllowed: true}
}

func (p *LimitProvider) IsSupported() bool {
	return p.modes.Has(hal.ModeLimit) || p.modes.Has(hal.ModeToggle)
}

// Relies on plug state alone when the hardware enforces the ceiling;
// the software-toggle path still sees levels through the regular
// battery subscription.
func (p *LimitProvider) RequiresBatteryLevelMonitoring() bool { return false }

func (p *LimitProvider) IsModeSupported(m Mode) bool {
	return m == ModeLimit || m == ModeAuto || m == ModeManual
}

func (p *LimitProvider) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
	return nil
}

func (p *LimitProvider) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled && p.chargingAllowed {
		return nil
	}
	p.enabled = false
	return p.unthrottle()
}

func (p *LimitProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	return p.unthrottle()
}

func (p *LimitProvider) unthrottle() error {
	p.chargingAllowed = true
	if p.modes.Has(hal.ModeLimit) {
		if err := p.dev.SetChargingLimit(100); err != nil {
			return err
		}
	}
	return p.dev.SetChargingEnabled(true)
}

func (p *LimitProvider) UpdateLimit(batteryPct float64, limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit >= 100 {
		if err := p.unthrottle(); err != nil {
			logrus.Errorf("failed to clear charge limit: %v", err)
		}
		return false
	}

	if p.modes.Has(hal.ModeLimit) {
		if err := p.dev.SetChargingLimit(limit); err != nil {
			logrus.Errorf("failed to set charge limit: %v", err)
			return false
		}
		return true
	}

	// Software hysteresis over the charging toggle.
	if batteryPct >= float64(limit) && p.chargingAllowed {
		logrus.WithFields(logrus.Fields{
			"batteryPct": batteryPct,
			"limit":      limit,
		}).Info("battery charge reached limit, disabling charging")
		if err := p.dev.SetChargingEnabled(false); err != nil {
			logrus.Errorf("failed to disable charging: %v", err)
			return false
		}
		p.chargingAllowed = false
	} else if batteryPct < float64(limit-lowerLimitDelta) && !p.chargingAllowed {
		logrus.WithFields(logrus.Fields{
			"batteryPct": batteryPct,
			"limit":      limit,
		}).Info("battery charge dropped below lower limit, enabling charging")
		if err := p.dev.SetChargingEnabled(true); err != nil {
			logrus.Errorf("failed to enable charging: %v", err)
			return false
		}
		p.chargingAllowed = true
	}

	return true
}

// UpdateWindow serves deadline-style modes when this provider is the
// fallback: hold the charge at the ceiling outside the window, release
// it once the window opens.
func (p *LimitProvider) UpdateWindow(batteryPct float64, start, target time.Time, m Mode) bool {
	now := p.now()
	if now.Before(start) {
		// Not yet in the window: cap the charge where it is so it does
		// not run to full early.
		hold := int(batteryPct)
		if hold < minHoldCharge {
			hold = minHoldCharge
		}
		return p.UpdateLimit(batteryPct, hold)
	}
	if now.After(target) {
		p.UpdateLimit(batteryPct, 100)
		return false
	}
	p.UpdateLimit(batteryPct, 100)
	return batteryPct < 100
}

func (p *LimitProvider) Dump(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(w, "Provider: limit")
	fmt.Fprintf(w, "  enabled: %t\n", p.enabled)
	fmt.Fprintf(w, "  chargingAllowed: %t\n", p.chargingAllowed)
	fmt.Fprintf(w, "  hardwareLimit: %t\n", p.modes.Has(hal.ModeLimit))
}
