package charging

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/alarm"
	"github.com/chargectl/chargectl/pkg/battery"
	"github.com/chargectl/chargectl/pkg/events"
	"github.com/chargectl/chargectl/pkg/hal"
	"github.com/chargectl/chargectl/pkg/settings"
)

// BatteryReader is the synchronous battery read the controller uses
// when it needs current telemetry outside the event stream.
type BatteryReader interface {
	Refresh() (battery.Snapshot, error)
}

// Controller owns the charging-control state machine: it reacts to
// settings changes, battery broadcasts and power transitions, selects a
// provider for the configured mode, and drives it.
//
// All runtime state is mutated on a single worker goroutine; public
// methods marshal onto it. Operations fail safe: they return false or
// no-op instead of propagating errors.
type Controller struct {
	dev      hal.ChargingControl
	store    settings.Store
	hub      *events.Hub
	batts    BatteryReader
	alarms   alarm.Source
	notifier Notifier
	now      func() time.Time

	deadline Provider
	limit    Provider
	toggle   Provider
	current  Provider

	// Runtime state, owned by the worker.
	isEnabled        bool
	batteryPct       float64
	isPowerConnected bool
	cancelledOnce    bool

	// Subscription channels owned by the worker. A nil channel simply
	// never fires in the run loop select.
	settingsCh chan events.Event
	powerCh    chan events.Event
	battCh     chan events.Event
	alarmCh    chan events.Event
	cancelCh   chan events.Event

	tasks    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewController builds a controller over dev. A nil dev (or a dev whose
// capability probe fails) leaves the controller in the terminal
// unsupported state: every operation is a no-op returning false.
func NewController(dev hal.ChargingControl, store settings.Store, hub *events.Hub,
	batts BatteryReader, alarms alarm.Source, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	c := &Controller{
		dev:      dev,
		store:    store,
		hub:      hub,
		batts:    batts,
		alarms:   alarms,
		notifier: notifier,
		now:      time.Now,
		tasks:    make(chan func(), 32),
		stopCh:   make(chan struct{}),
	}

	if dev == nil {
		logrus.Info("charging control hardware not found")
		return c
	}

	modes, err := dev.SupportedModes()
	if err != nil {
		logrus.Errorf("failed to query supported charging control modes: %v", err)
		c.dev = nil
		return c
	}

	c.deadline = NewDeadlineProvider(dev, modes)
	c.limit = NewLimitProvider(dev, modes)
	c.toggle = NewToggleProvider(dev, modes)

	c.current = c.providerForMode(c.GetMode())
	if c.current == nil {
		// Construction-time fallback order, distinct from the
		// per-mode preference order used by SetMode.
		switch {
		case c.limit.IsSupported():
			c.current = c.limit
		case c.toggle.IsSupported():
			c.current = c.toggle
		case c.deadline.IsSupported():
			c.current = c.deadline
		default:
			logrus.Error("no charging control provider is supported")
		}
	}

	return c
}

// providerForMode returns the preferred supported provider for m, or
// nil when no provider covers it.
func (c *Controller) providerForMode(m Mode) Provider {
	if !m.Valid() {
		return nil
	}

	switch m {
	case ModeLimit:
		if c.limit.IsSupported() {
			return c.limit
		}
		if c.toggle.IsSupported() {
			return c.toggle
		}
	case ModeAuto, ModeManual:
		if c.deadline.IsSupported() {
			return c.deadline
		}
		if c.limit.IsSupported() {
			return c.limit
		}
		if c.toggle.IsSupported() {
			return c.toggle
		}
	}

	return nil
}

// IsSupported reports whether a usable charging-control handle was
// obtained at construction.
func (c *Controller) IsSupported() bool { return c.dev != nil }

func (c *Controller) GetEnabled() bool { return c.store.GetBool(settings.KeyEnabled) }

func (c *Controller) SetEnabled(enabled bool) bool {
	if !c.IsSupported() {
		return false
	}
	ok := false
	c.call(func() {
		ok = c.store.PutBool(settings.KeyEnabled, enabled) == nil
	})
	return ok
}

func (c *Controller) GetMode() Mode { return Mode(c.store.GetInt(settings.KeyMode)) }

// SetMode switches the strategy. It fails when no supported provider
// covers the requested mode; the stored mode is then left unchanged.
func (c *Controller) SetMode(m Mode) bool {
	if !c.IsSupported() || !m.Valid() {
		return false
	}
	ok := false
	c.call(func() {
		p := c.providerForMode(m)
		if p == nil {
			return
		}
		c.current = p
		ok = c.store.PutInt(settings.KeyMode, int(m)) == nil
	})
	return ok
}

func (c *Controller) GetStartTime() int { return c.store.GetInt(settings.KeyStartTime) }

func (c *Controller) SetStartTime(secondOfDay int) bool {
	if !c.IsSupported() || secondOfDay < 0 || secondOfDay > 24*60*60 {
		return false
	}
	return c.store.PutInt(settings.KeyStartTime, secondOfDay) == nil
}

func (c *Controller) GetTargetTime() int { return c.store.GetInt(settings.KeyTargetTime) }

func (c *Controller) SetTargetTime(secondOfDay int) bool {
	if !c.IsSupported() || secondOfDay < 0 || secondOfDay > 24*60*60 {
		return false
	}
	return c.store.PutInt(settings.KeyTargetTime, secondOfDay) == nil
}

func (c *Controller) GetLimit() int { return c.store.GetInt(settings.KeyLimit) }

func (c *Controller) SetLimit(pct int) bool {
	if !c.IsSupported() || pct < 0 || pct > 100 {
		return false
	}
	return c.store.PutInt(settings.KeyLimit, pct) == nil
}

// Reset restores every setting to its default. It succeeds iff every
// sub-setter succeeds.
func (c *Controller) Reset() bool {
	if !c.IsSupported() {
		return false
	}
	d := c.store.Defaults()
	return c.SetEnabled(d.Enabled) &&
		c.SetMode(Mode(d.Mode)) &&
		c.SetLimit(d.Limit) &&
		c.SetStartTime(d.StartTime) &&
		c.SetTargetTime(d.TargetTime)
}

// IsChargingModeSupported queries the device capability bitmask for
// the capabilities that could serve m.
func (c *Controller) IsChargingModeSupported(m Mode) bool {
	if !c.IsSupported() {
		return false
	}
	mask, err := c.dev.SupportedModes()
	if err != nil {
		logrus.Errorf("failed to query supported charging control modes: %v", err)
		return false
	}

	switch m {
	case ModeLimit:
		return mask.Has(hal.ModeLimit | hal.ModeToggle)
	case ModeAuto, ModeManual:
		return mask.Has(hal.ModeDeadline | hal.ModeLimit | hal.ModeToggle)
	}
	return false
}

// AllowFineGrainedSettings reports whether a toggle or limit capability
// is present.
func (c *Controller) AllowFineGrainedSettings() bool {
	if !c.IsSupported() {
		return false
	}
	mask, err := c.dev.SupportedModes()
	if err != nil {
		return false
	}
	return mask.Has(hal.ModeToggle | hal.ModeLimit)
}

// SetChargingCancelledOnce disables the throttle for the remainder of
// the current charge session: the cancellation clears when power is
// disconnected or the battery reaches full.
func (c *Controller) SetChargingCancelledOnce() {
	if !c.IsSupported() {
		return
	}
	c.call(func() {
		if c.current == nil {
			return
		}
		c.cancelledOnce = true

		if c.current.RequiresBatteryLevelMonitoring() && c.cancelCh == nil {
			// One-shot subscription: the hub disposes it after the
			// first power-disconnect delivery.
			c.cancelCh = c.hub.SubscribeOnce(events.PowerDisconnected)
		}

		if err := c.current.Disable(); err != nil {
			logrus.Errorf("failed to disable charging control provider: %v", err)
		}
		c.notifier.Cancel()
	})
}

// Start begins processing events. It is a no-op when the feature is
// unsupported.
func (c *Controller) Start() {
	if !c.IsSupported() || c.current == nil {
		return
	}

	// One always-on subscription per concern; key filtering happens in
	// the handler.
	c.settingsCh = c.hub.Subscribe(events.SettingsChanged)
	c.powerCh = c.hub.Subscribe(events.PowerConnected, events.PowerDisconnected, events.BatteryFull)

	c.started.Store(true)
	go c.run()
	c.do(c.handleSettingChange)
}

func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.tasks:
			fn()
		case ev, ok := <-c.settingsCh:
			if !ok {
				c.settingsCh = nil
				continue
			}
			c.onSettingsEvent(ev)
		case ev, ok := <-c.powerCh:
			if !ok {
				c.powerCh = nil
				continue
			}
			c.onPowerEvent(ev)
		case ev, ok := <-c.battCh:
			if !ok {
				c.battCh = nil
				continue
			}
			c.onBatteryEvent(ev)
		case _, ok := <-c.alarmCh:
			if !ok {
				c.alarmCh = nil
				continue
			}
			logrus.Info("alarm changed, update charge times")
			c.updateChargeControl()
		case _, ok := <-c.cancelCh:
			c.cancelCh = nil
			if ok {
				logrus.Info("power disconnected, reset internal states")
				c.resetInternalState()
			}
		case <-c.stopCh:
			return
		}
	}
}

// do enqueues fn for the worker without waiting.
func (c *Controller) do(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.stopCh:
	}
}

// call runs fn on the worker and waits for it. Before Start the worker
// does not exist and fn runs inline.
func (c *Controller) call(fn func()) {
	if !c.started.Load() {
		fn()
		return
	}
	done := make(chan struct{})
	select {
	case c.tasks <- func() { fn(); close(done) }:
	case <-c.stopCh:
		return
	}
	select {
	case <-done:
	case <-c.stopCh:
	}
}

func (c *Controller) onSettingsEvent(ev events.Event) {
	payload, err := events.DecodeAs[events.SettingsChangedEvent](ev)
	if err != nil {
		return
	}
	switch settings.Key(payload.Key) {
	case settings.KeyEnabled, settings.KeyMode, settings.KeyLimit,
		settings.KeyStartTime, settings.KeyTargetTime:
		c.handleSettingChange()
	}
}

func (c *Controller) onPowerEvent(ev events.Event) {
	switch ev.Name {
	case events.PowerConnected:
		c.onPowerStatus(true)
	case events.PowerDisconnected:
		c.onPowerStatus(false)
	case events.BatteryFull:
		c.cancelledOnce = false
		c.updateChargeControl()
	}
}

func (c *Controller) onPowerStatus(connected bool) {
	// Don't do anything if charging control is not enabled.
	if !c.GetEnabled() {
		return
	}

	if connected {
		c.subscribeBattery()
		c.refreshBatteryInfo()
		c.updateChargeControl()
	} else {
		c.unsubscribeBattery()
		c.resetInternalState()
	}
}

func (c *Controller) onBatteryEvent(ev events.Event) {
	payload, err := events.DecodeAs[events.BatteryChangedEvent](ev)
	if err != nil {
		return
	}
	c.applyBatteryInfo(battery.Snapshot{
		Status:  battery.Status(payload.Status),
		Plugged: payload.Plugged,
		Percent: payload.Percent,
	})
	c.updateChargeControl()
}

func (c *Controller) applyBatteryInfo(snap battery.Snapshot) {
	if snap.Status == battery.StatusFull {
		c.cancelledOnce = false
	}

	// A provider that watches battery levels governs the throttle
	// itself; treat power as connected and let its logic decide.
	if c.current != nil && c.current.RequiresBatteryLevelMonitoring() {
		c.isPowerConnected = true
	} else {
		c.isPowerConnected = snap.Plugged
	}

	c.batteryPct = snap.Percent

	logrus.WithFields(logrus.Fields{
		"isPowerConnected": c.isPowerConnected,
		"batteryPct":       c.batteryPct,
	}).Debug("battery info updated")
}

func (c *Controller) refreshBatteryInfo() {
	snap, err := c.batts.Refresh()
	if err != nil {
		logrus.Errorf("failed to read battery: %v", err)
		return
	}
	c.applyBatteryInfo(snap)
}

func (c *Controller) subscribeBattery() {
	if c.battCh != nil {
		c.hub.Unsubscribe(c.battCh)
	}
	c.battCh = c.hub.Subscribe(events.BatteryChanged)
}

func (c *Controller) unsubscribeBattery() {
	if c.battCh == nil {
		return
	}
	c.hub.Unsubscribe(c.battCh)
	c.battCh = nil
}

// handleSettingChange is the re-evaluation entry point: any relevant
// settings write lands here.
func (c *Controller) handleSettingChange() {
	mode := c.GetMode()

	if enabled := c.GetEnabled(); c.isEnabled != enabled {
		c.isEnabled = enabled
		if enabled {
			c.subscribeBattery()
			logrus.Info("enabled charging control, start monitoring battery")
		} else {
			c.unsubscribeBattery()
			logrus.Info("disabled charging control, stop monitoring battery")
		}
	}

	if c.current == nil || !c.current.IsModeSupported(mode) {
		def := Mode(c.store.Defaults().Mode)
		logrus.Warnf("current provider does not support mode %s, setting to default mode %s", mode, def)
		if p := c.providerForMode(def); p != nil {
			c.current = p
			if err := c.store.PutInt(settings.KeyMode, int(def)); err != nil {
				logrus.Errorf("failed to persist default mode: %v", err)
			}
		} else {
			logrus.Errorf("no provider supports the default mode %s", def)
		}
	}

	c.resetInternalState()
	c.refreshBatteryInfo()
	c.updateChargeControl()
}

func (c *Controller) resetInternalState() {
	if c.current == nil {
		return
	}
	c.cancelledOnce = false
	c.notifier.Cancel()
	if err := c.current.Reset(); err != nil {
		logrus.Errorf("failed to reset charging control provider: %v", err)
	}
}

// updateChargeControl recomputes and applies the throttle decision.
func (c *Controller) updateChargeControl() {
	if c.current == nil {
		return
	}

	if !c.GetEnabled() || c.cancelledOnce || !c.isPowerConnected {
		if err := c.current.Disable(); err != nil {
			logrus.Errorf("failed to disable charging control provider: %v", err)
		}
		c.notifier.Cancel()
		return
	}

	mode := c.GetMode()
	limit := c.GetLimit()

	if err := c.current.Enable(); err != nil {
		logrus.Errorf("failed to enable charging control provider: %v", err)
		return
	}

	if mode == ModeLimit {
		if c.current.UpdateLimit(c.batteryPct, limit) && c.isPowerConnected {
			c.notifier.Post(Notice{
				Kind:  NoticeLimit,
				Limit: limit,
				Done:  c.batteryPct >= float64(limit),
			})
		} else {
			c.notifier.Cancel()
		}
	} else {
		ct := computeChargeTime(mode, c.now(), c.alarms, c.GetStartTime(), c.GetTargetTime())
		if ct == nil {
			// No plan to work against this cycle.
			c.notifier.Cancel()
		} else if c.current.UpdateWindow(c.batteryPct, ct.Start, ct.Target, mode) {
			c.notifier.Post(Notice{
				Kind:   NoticeDeadline,
				Target: ct.Target,
				Done:   c.batteryPct == 100,
			})
		} else {
			c.notifier.Cancel()
		}
	}

	// Automatic mode follows alarm changes live; leaving it drops the
	// subscription.
	if mode == ModeAuto {
		if c.alarmCh == nil {
			c.alarmCh = c.hub.Subscribe(events.AlarmChanged)
		}
	} else if c.alarmCh != nil {
		c.hub.Unsubscribe(c.alarmCh)
		c.alarmCh = nil
	}
}

// Dump writes diagnostic state.
func (c *Controller) Dump(w io.Writer) {
	c.call(func() {
		fmt.Fprintln(w, "Charging Control Configuration:")
		fmt.Fprintf(w, "  Supported: %t\n", c.IsSupported())
		fmt.Fprintf(w, "  Enabled: %t\n", c.GetEnabled())
		fmt.Fprintf(w, "  Mode: %s\n", c.GetMode())
		fmt.Fprintf(w, "  Limit: %d\n", c.GetLimit())
		fmt.Fprintf(w, "  StartTime: %d\n", c.GetStartTime())
		fmt.Fprintf(w, "  TargetTime: %d\n", c.GetTargetTime())
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Charging Control State:")
		fmt.Fprintf(w, "  isEnabled: %t\n", c.isEnabled)
		fmt.Fprintf(w, "  batteryPct: %.1f\n", c.batteryPct)
		fmt.Fprintf(w, "  isPowerConnected: %t\n", c.isPowerConnected)
		fmt.Fprintf(w, "  isControlCancelledOnce: %t\n", c.cancelledOnce)
		if n, posted := c.notifier.Current(); posted {
			fmt.Fprintf(w, "  notificationPosted: true (done: %t)\n", n.Done)
		} else {
			fmt.Fprintln(w, "  notificationPosted: false")
		}
		fmt.Fprintln(w)
		if c.current != nil {
			c.current.Dump(w)
		}
	})
}
