// Package hal wraps the vendor charging-control device. The daemon is
// the sole mutator of the device; everything above it talks through the
// ChargingControl interface so tests can swap in a mock.
package hal

import (
	"strings"
	"time"
)

// ModeMask is the capability bitmask reported by the device.
type ModeMask int

const (
	ModeToggle   ModeMask = 1 << 0 // charging can be switched on/off
	ModeBypass   ModeMask = 1 << 1 // device can run off external power without charging
	ModeDeadline ModeMask = 1 << 2 // device paces charging towards a deadline
	ModeLimit    ModeMask = 1 << 3 // device enforces a charge ceiling itself
)

func (m ModeMask) Has(c ModeMask) bool { return m&c != 0 }

func (m ModeMask) String() string {
	var parts []string
	if m.Has(ModeToggle) {
		parts = append(parts, "toggle")
	}
	if m.Has(ModeBypass) {
		parts = append(parts, "bypass")
	}
	if m.Has(ModeDeadline) {
		parts = append(parts, "deadline")
	}
	if m.Has(ModeLimit) {
		parts = append(parts, "limit")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ChargingControl is a handle to the vendor charging-control device.
// Calls are synchronous local IO and may fail per-call; callers treat a
// failure as "feature currently disabled" and do not retry.
type ChargingControl interface {
	// SupportedModes returns the device capability bitmask.
	SupportedModes() (ModeMask, error)
	// ChargingEnabled reports whether the device currently allows charging.
	ChargingEnabled() (bool, error)
	// SetChargingEnabled switches charging on or off. Idempotent.
	SetChargingEnabled(enabled bool) error
	// SetChargingLimit sets the hardware charge ceiling in percent.
	// Only meaningful when ModeLimit is supported. 100 clears the limit.
	SetChargingLimit(pct int) error
	// SetChargingDeadline tells the device how much time remains until
	// charging should complete. Zero clears the deadline. Only
	// meaningful when ModeDeadline is supported.
	SetChargingDeadline(d time.Duration) error
	Close() error
}
