package charging

import (
	"io"
	"time"
)

// Provider is one throttling strategy over the vendor charging-control
// handle. The controller holds exactly one active provider at a time
// and never inspects the concrete type.
type Provider interface {
	// IsSupported reports the cached hardware capability probe result.
	IsSupported() bool
	// RequiresBatteryLevelMonitoring is a per-variant constant: whether
	// the strategy needs continuous battery levels to time the
	// throttle/release, as opposed to plug state alone.
	RequiresBatteryLevelMonitoring() bool
	IsModeSupported(m Mode) bool

	// Enable and Disable are idempotent. Disable restores unthrottled
	// charging and is safe to call even if Enable never ran.
	Enable() error
	Disable() error
	// Reset returns the hardware to an unthrottled baseline and clears
	// strategy state; called whenever the controller restarts a session.
	Reset() error

	// UpdateLimit applies the percentage-ceiling strategy. It returns
	// true iff the throttle policy is currently active.
	UpdateLimit(batteryPct float64, limit int) bool
	// UpdateWindow applies the deadline strategy for the [start, target]
	// window. It returns true iff the throttle policy is currently
	// active, false when out of window or nothing needs doing.
	UpdateWindow(batteryPct float64, start, target time.Time, m Mode) bool

	Dump(w io.Writer)
}
