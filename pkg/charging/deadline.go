package charging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/hal"
)

// DeadlineProvider hands the remaining charge window to hardware that
// paces charging on its own: the device gets the time left until the
// target and releases charge so the battery reaches full near it.
type DeadlineProvider struct {
	dev   hal.ChargingControl
	modes hal.ModeMask
	now   func() time.Time

	mu       sync.Mutex
	enabled  bool
	deadline time.Duration
}

func NewDeadlineProvider(dev hal.ChargingControl, modes hal.ModeMask) *DeadlineProvider {
	return &DeadlineProvider{dev: dev, modes: modes, now: time.Now}
}

func (p *DeadlineProvider) IsSupported() bool { return p.modes.Has(hal.ModeDeadline) }

func (p *DeadlineProvider) RequiresBatteryLevelMonitoring() bool { return true }

func (p *DeadlineProvider) IsModeSupported(m Mode) bool {
	return m == ModeAuto || m == ModeManual
}

func (p *DeadlineProvider) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
	return nil
}

func (p *DeadlineProvider) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled && p.deadline == 0 {
		return nil
	}
	p.enabled = false
	return p.clear()
}

func (p *DeadlineProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	return p.clear()
}

func (p *DeadlineProvider) clear() error {
	p.deadline = 0
	return p.dev.SetChargingDeadline(0)
}

// UpdateLimit is not a strategy this provider implements; the
// controller never routes LIMIT mode here.
func (p *DeadlineProvider) UpdateLimit(batteryPct float64, limit int) bool {
	logrus.Warn("deadline provider cannot serve a percentage limit")
	return false
}

func (p *DeadlineProvider) UpdateWindow(batteryPct float64, start, target time.Time, m Mode) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Before(start) || now.After(target) {
		if err := p.clear(); err != nil {
			logrus.Errorf("failed to clear charge deadline: %v", err)
		}
		return false
	}

	remaining := target.Sub(now)
	if err := p.dev.SetChargingDeadline(remaining); err != nil {
		logrus.Errorf("failed to set charge deadline: %v", err)
		return false
	}
	p.deadline = remaining

	logrus.WithFields(logrus.Fields{
		"remaining":  remaining.String(),
		"batteryPct": batteryPct,
	}).Debug("charge deadline updated")

	return true
}

func (p *DeadlineProvider) Dump(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(w, "Provider: deadline")
	fmt.Fprintf(w, "  enabled: %t\n", p.enabled)
	fmt.Fprintf(w, "  deadline: %s\n", p.deadline)
}
