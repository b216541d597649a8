// Package battery polls the OS battery and broadcasts telemetry: a
// battery.changed event on every poll, plus power.connected,
// power.disconnected and battery.full on edges.
package battery

import (
	"sync"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/events"
)

// Status is the coarse charging state of the battery.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusCharging    Status = "charging"
	StatusDischarging Status = "discharging"
	StatusNotCharging Status = "not-charging"
	StatusFull        Status = "full"
)

// Snapshot is one battery reading.
type Snapshot struct {
	Status  Status
	Plugged bool
	Percent float64
}

// PollFunc reads the current batteries. Swappable in tests.
type PollFunc func() ([]*battery.Battery, error)

// Monitor periodically reads the battery and publishes events.
type Monitor struct {
	hub      *events.Hub
	poll     PollFunc
	interval time.Duration

	mu      sync.Mutex
	last    Snapshot
	hasLast bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMonitor(hub *events.Hub, interval time.Duration, poll PollFunc) *Monitor {
	if poll == nil {
		poll = battery.GetAll
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		hub:      hub,
		poll:     poll,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the poll loop until Stop.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			if _, err := m.Refresh(); err != nil {
				logrus.Errorf("battery poll failed: %v", err)
			}
			select {
			case <-ticker.C:
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Refresh reads the battery once, publishes events, and returns the
// snapshot. It is the synchronous read used when the controller needs
// current state outside the poll cadence.
func (m *Monitor) Refresh() (Snapshot, error) {
	bats, err := m.poll()
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(err, "failed to read batteries")
	}
	if len(bats) == 0 {
		return Snapshot{}, pkgerrors.New("no batteries found")
	}

	snap := toSnapshot(bats[0])

	m.mu.Lock()
	prev, hadPrev := m.last, m.hasLast
	m.last, m.hasLast = snap, true
	m.mu.Unlock()

	m.hub.Publish(events.BatteryChanged, events.BatteryChangedEvent{
		Status:  string(snap.Status),
		Plugged: snap.Plugged,
		Percent: snap.Percent,
	})

	if !hadPrev || prev.Plugged != snap.Plugged {
		if snap.Plugged {
			m.hub.Publish(events.PowerConnected, nil)
		} else if hadPrev {
			m.hub.Publish(events.PowerDisconnected, nil)
		}
	}
	if snap.Status == StatusFull && (!hadPrev || prev.Status != StatusFull) {
		m.hub.Publish(events.BatteryFull, nil)
	}

	return snap, nil
}

// Last returns the most recent snapshot, if any.
func (m *Monitor) Last() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}

func toSnapshot(b *battery.Battery) Snapshot {
	st := StatusUnknown
	switch b.State {
	case battery.Charging:
		st = StatusCharging
	case battery.Discharging, battery.Empty:
		st = StatusDischarging
	case battery.Full:
		st = StatusFull
	}

	pct := 0.0
	if b.Full > 0 {
		pct = b.Current * 100 / b.Full
	}

	// No direct plugged-in reading here; infer it the same way the
	// status broadcast is interpreted: anything other than discharging
	// or unknown means external power is present.
	plugged := st != StatusDischarging && st != StatusUnknown

	return Snapshot{Status: st, Plugged: plugged, Percent: pct}
}
