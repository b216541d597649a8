package charging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/chargectl/chargectl/pkg/alarm"
	"github.com/chargectl/chargectl/pkg/battery"
	"github.com/chargectl/chargectl/pkg/events"
	"github.com/chargectl/chargectl/pkg/hal"
	"github.com/chargectl/chargectl/pkg/settings"
)

type fakeBatts struct {
	snap battery.Snapshot
	err  error
}

func (f *fakeBatts) Refresh() (battery.Snapshot, error) { return f.snap, f.err }

func boolp(v bool) *bool { return &v }
func intp(v int) *int    { return &v }

type testRig struct {
	ctrl     *Controller
	dev      *hal.Mock
	store    *settings.File
	batts    *fakeBatts
	alarms   *alarm.Fixed
	notifier *LogNotifier
	hub      *events.Hub
}

// newTestRig builds an unstarted controller over an in-memory store and
// a mock device. Handlers are driven synchronously from the tests.
func newTestRig(t *testing.T, modes hal.ModeMask, raw *settings.RawSettings) *testRig {
	t.Helper()
	hub := events.NewHub()
	store := settings.NewFileFromRaw(raw, hub)
	batts := &fakeBatts{snap: battery.Snapshot{
		Status:  battery.StatusCharging,
		Plugged: true,
		Percent: 50,
	}}
	alarms := &alarm.Fixed{}
	notifier := NewLogNotifier()
	ctrl := NewController(hal.NewMock(modes), store, hub, batts, alarms, notifier)
	return &testRig{
		ctrl:     ctrl,
		dev:      ctrl.dev.(*hal.Mock),
		store:    store,
		batts:    batts,
		alarms:   alarms,
		notifier: notifier,
		hub:      hub,
	}
}

func TestUnsupportedController(t *testing.T) {
	store := settings.NewFileFromRaw(nil, nil)
	c := NewController(nil, store, events.NewHub(), &fakeBatts{}, &alarm.Fixed{}, nil)

	if c.IsSupported() {
		t.Fatal("controller without a device must report unsupported")
	}
	if c.SetEnabled(true) || c.SetMode(ModeLimit) || c.SetLimit(70) ||
		c.SetStartTime(0) || c.SetTargetTime(0) || c.Reset() {
		t.Error("setters must fail on an unsupported controller")
	}
	if c.IsChargingModeSupported(ModeLimit) || c.AllowFineGrainedSettings() {
		t.Error("capability queries must be false on an unsupported controller")
	}
	// Must not panic.
	c.SetChargingCancelledOnce()
	c.Start()
	c.Dump(&bytes.Buffer{})
}

func TestSetterRangeValidation(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle|hal.ModeLimit, &settings.RawSettings{Limit: intp(75)})

	tests := []struct {
		name string
		set  func() bool
		want bool
	}{
		{"limit below range", func() bool { return r.ctrl.SetLimit(-1) }, false},
		{"limit above range", func() bool { return r.ctrl.SetLimit(101) }, false},
		{"limit lower bound", func() bool { return r.ctrl.SetLimit(0) }, true},
		{"limit upper bound", func() bool { return r.ctrl.SetLimit(100) }, true},
		{"start time below range", func() bool { return r.ctrl.SetStartTime(-1) }, false},
		{"start time above range", func() bool { return r.ctrl.SetStartTime(24*60*60 + 1) }, false},
		{"start time upper bound", func() bool { return r.ctrl.SetStartTime(24 * 60 * 60) }, true},
		{"target time below range", func() bool { return r.ctrl.SetTargetTime(-1) }, false},
		{"target time upper bound", func() bool { return r.ctrl.SetTargetTime(24 * 60 * 60) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.set(); got != tt.want {
				t.Errorf("setter = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestRejectedSetterLeavesValue(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle, &settings.RawSettings{Limit: intp(75)})

	if r.ctrl.SetLimit(150) {
		t.Fatal("out-of-range limit must be rejected")
	}
	if got := r.ctrl.GetLimit(); got != 75 {
		t.Errorf("limit = %d, want the previous value 75", got)
	}

	if r.ctrl.SetMode(Mode(42)) {
		t.Fatal("unknown mode must be rejected")
	}
	if got := r.ctrl.GetMode(); got != ModeAuto {
		t.Errorf("mode = %s, want the previous value auto", got)
	}
}

func TestSetModeProviderCoverage(t *testing.T) {
	tests := []struct {
		name  string
		modes hal.ModeMask
		mode  Mode
		want  bool
	}{
		{"limit mode via native limit", hal.ModeLimit, ModeLimit, true},
		{"limit mode via toggle", hal.ModeToggle, ModeLimit, true},
		{"limit mode with deadline only", hal.ModeDeadline, ModeLimit, false},
		{"auto mode with deadline only", hal.ModeDeadline, ModeAuto, true},
		{"manual mode with toggle only", hal.ModeToggle, ModeManual, true},
		{"mode none never selectable", hal.ModeToggle | hal.ModeLimit | hal.ModeDeadline, ModeNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t, tt.modes, nil)
			before := r.ctrl.GetMode()
			if got := r.ctrl.SetMode(tt.mode); got != tt.want {
				t.Fatalf("SetMode(%s) = %t, want %t", tt.mode, got, tt.want)
			}
			if !tt.want && r.ctrl.GetMode() != before {
				t.Errorf("rejected SetMode changed the stored mode to %s", r.ctrl.GetMode())
			}
		})
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle|hal.ModeLimit|hal.ModeDeadline, nil)

	if !r.ctrl.SetEnabled(true) || !r.ctrl.SetMode(ModeLimit) ||
		!r.ctrl.SetLimit(60) || !r.ctrl.SetStartTime(1000) || !r.ctrl.SetTargetTime(2000) {
		t.Fatal("setup setters failed")
	}

	if !r.ctrl.Reset() {
		t.Fatal("Reset failed")
	}

	d := r.store.Defaults()
	if r.ctrl.GetEnabled() != d.Enabled {
		t.Errorf("enabled = %t, want %t", r.ctrl.GetEnabled(), d.Enabled)
	}
	if int(r.ctrl.GetMode()) != d.Mode {
		t.Errorf("mode = %d, want %d", r.ctrl.GetMode(), d.Mode)
	}
	if r.ctrl.GetLimit() != d.Limit {
		t.Errorf("limit = %d, want %d", r.ctrl.GetLimit(), d.Limit)
	}
	if r.ctrl.GetStartTime() != d.StartTime {
		t.Errorf("startTime = %d, want %d", r.ctrl.GetStartTime(), d.StartTime)
	}
	if r.ctrl.GetTargetTime() != d.TargetTime {
		t.Errorf("targetTime = %d, want %d", r.ctrl.GetTargetTime(), d.TargetTime)
	}
}

func TestLimitModeThrottleAndNotification(t *testing.T) {
	r := newTestRig(t, hal.ModeLimit, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})

	// At 85% the limit is reached: throttle active, notice done.
	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 85}
	r.ctrl.handleSettingChange()

	if r.dev.Limit != 80 {
		t.Errorf("hardware limit = %d, want 80", r.dev.Limit)
	}
	n, posted := r.notifier.Current()
	if !posted {
		t.Fatal("expected a posted notification")
	}
	if n.Kind != NoticeLimit || !n.Done || n.Limit != 80 {
		t.Errorf("notice = %+v, want limit notice done at 80", n)
	}

	// At 60% charging continues towards the limit: notice in progress.
	r.batts.snap.Percent = 60
	r.ctrl.refreshBatteryInfo()
	r.ctrl.updateChargeControl()

	n, posted = r.notifier.Current()
	if !posted {
		t.Fatal("expected a posted notification")
	}
	if n.Done {
		t.Error("notice should not be done below the limit")
	}
}

func TestDisabledControlReleasesThrottle(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})

	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 90}
	r.ctrl.handleSettingChange()
	if r.dev.Enabled {
		t.Fatal("charging should be held above the limit")
	}

	if !r.ctrl.SetEnabled(false) {
		t.Fatal("SetEnabled failed")
	}
	r.ctrl.handleSettingChange()

	if !r.dev.Enabled {
		t.Error("disabling the feature must restore charging")
	}
	if _, posted := r.notifier.Current(); posted {
		t.Error("notification must be withdrawn when the feature is disabled")
	}
}

func TestAutoModeWithoutAlarm(t *testing.T) {
	r := newTestRig(t, hal.ModeDeadline, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeAuto)),
	})
	r.alarms.Set = false

	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 50}
	r.ctrl.handleSettingChange()

	if r.dev.Deadline != 0 {
		t.Errorf("deadline = %s, want none without an alarm", r.dev.Deadline)
	}
	if _, posted := r.notifier.Current(); posted {
		t.Error("no notification should be posted without a charging plan")
	}
}

func TestAutoModeFollowsAlarm(t *testing.T) {
	r := newTestRig(t, hal.ModeDeadline, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeAuto)),
	})

	now := time.Now()
	r.alarms.At = now.Add(2 * time.Hour)
	r.alarms.Set = true

	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 50}
	r.ctrl.handleSettingChange()

	if r.dev.Deadline <= 0 || r.dev.Deadline > 2*time.Hour {
		t.Errorf("deadline = %s, want a positive duration up to 2h", r.dev.Deadline)
	}
	n, posted := r.notifier.Current()
	if !posted {
		t.Fatal("expected a posted notification")
	}
	if n.Kind != NoticeDeadline || n.Done {
		t.Errorf("notice = %+v, want an in-progress deadline notice", n)
	}
	if !n.Target.Equal(r.alarms.At) {
		t.Errorf("notice target = %v, want the alarm time %v", n.Target, r.alarms.At)
	}
}

func TestCancelOnceSuspendsUntilDisconnect(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})

	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 90}
	r.ctrl.handleSettingChange()
	if r.dev.Enabled {
		t.Fatal("charging should be held above the limit")
	}

	r.ctrl.SetChargingCancelledOnce()
	if !r.ctrl.cancelledOnce {
		t.Fatal("cancelledOnce should be set")
	}
	if !r.dev.Enabled {
		t.Error("cancellation must release the throttle")
	}
	if _, posted := r.notifier.Current(); posted {
		t.Error("cancellation must withdraw the notification")
	}

	// While cancelled, battery updates do not re-throttle.
	r.ctrl.refreshBatteryInfo()
	r.ctrl.updateChargeControl()
	if !r.dev.Enabled {
		t.Error("throttle must stay released while cancelled")
	}

	// Disconnecting power ends the charge session and clears the
	// cancellation.
	r.ctrl.onPowerStatus(false)
	if r.ctrl.cancelledOnce {
		t.Error("power disconnect must clear the cancellation")
	}
	if !r.dev.Enabled {
		t.Error("provider reset must leave charging allowed")
	}
}

func TestBatteryFullClearsCancellation(t *testing.T) {
	r := newTestRig(t, hal.ModeToggle, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})

	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 90}
	r.ctrl.handleSettingChange()
	r.ctrl.SetChargingCancelledOnce()

	r.batts.snap = battery.Snapshot{Status: battery.StatusFull, Plugged: true, Percent: 100}
	r.ctrl.refreshBatteryInfo()

	if r.ctrl.cancelledOnce {
		t.Error("a full battery must clear the cancellation")
	}
}

func TestUnsupportedModeFallsBackToDefault(t *testing.T) {
	// Stored mode is LIMIT but the hardware only paces deadlines, so the
	// controller reverts to the default mode.
	r := newTestRig(t, hal.ModeDeadline, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
	})

	r.ctrl.handleSettingChange()

	if got := r.ctrl.GetMode(); got != ModeAuto {
		t.Errorf("mode = %s, want the default auto", got)
	}
	if r.ctrl.current != r.ctrl.deadline {
		t.Error("current provider should be the deadline provider")
	}
}

func TestIsChargingModeSupported(t *testing.T) {
	tests := []struct {
		name  string
		modes hal.ModeMask
		mode  Mode
		want  bool
	}{
		{"limit via toggle", hal.ModeToggle, ModeLimit, true},
		{"limit via native limit", hal.ModeLimit, ModeLimit, true},
		{"limit unsupported", hal.ModeDeadline, ModeLimit, false},
		{"auto via deadline", hal.ModeDeadline, ModeAuto, true},
		{"manual via toggle", hal.ModeToggle, ModeManual, true},
		{"none", hal.ModeToggle | hal.ModeLimit | hal.ModeDeadline, ModeNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t, tt.modes, nil)
			if got := r.ctrl.IsChargingModeSupported(tt.mode); got != tt.want {
				t.Errorf("IsChargingModeSupported(%s) = %t, want %t", tt.mode, got, tt.want)
			}
		})
	}
}

func TestAllowFineGrainedSettings(t *testing.T) {
	if r := newTestRig(t, hal.ModeDeadline, nil); r.ctrl.AllowFineGrainedSettings() {
		t.Error("deadline-only hardware must not allow fine-grained settings")
	}
	if r := newTestRig(t, hal.ModeToggle, nil); !r.ctrl.AllowFineGrainedSettings() {
		t.Error("toggle hardware must allow fine-grained settings")
	}
	if r := newTestRig(t, hal.ModeLimit, nil); !r.ctrl.AllowFineGrainedSettings() {
		t.Error("limit hardware must allow fine-grained settings")
	}
}

func TestDump(t *testing.T) {
	r := newTestRig(t, hal.ModeLimit, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})
	r.ctrl.handleSettingChange()

	var buf bytes.Buffer
	r.ctrl.Dump(&buf)
	out := buf.String()

	for _, want := range []string{
		"Supported: true",
		"Enabled: true",
		"Mode: limit",
		"Limit: 80",
		"Provider: limit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestStartStop(t *testing.T) {
	r := newTestRig(t, hal.ModeLimit, &settings.RawSettings{
		Enabled: boolp(true),
		Mode:    intp(int(ModeLimit)),
		Limit:   intp(80),
	})
	r.batts.snap = battery.Snapshot{Status: battery.StatusCharging, Plugged: true, Percent: 85}

	r.ctrl.Start()
	defer r.ctrl.Stop()

	// A settings write round-trips through the hub to the worker.
	if !r.ctrl.SetLimit(70) {
		t.Fatal("SetLimit failed")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, limit, _ := r.dev.State(); limit == 70 {
			break
		}
		select {
		case <-deadline:
			_, limit, _ := r.dev.State()
			t.Fatalf("hardware limit = %d, want 70", limit)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
