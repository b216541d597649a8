package hal

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// Mock is an in-memory ChargingControl used in tests. It records every
// value applied to it and can be told to fail to exercise the
// "transient IO failure" path.
type Mock struct {
	mu sync.Mutex

	Modes    ModeMask
	FailNext error // returned by the next mutating call, then cleared

	Enabled  bool
	Limit    int
	Deadline time.Duration

	EnableCalls  int
	DisableCalls int
}

// NewMock returns a Mock with charging initially enabled and no limit.
func NewMock(modes ModeMask) *Mock {
	return &Mock{Modes: modes, Enabled: true, Limit: 100}
}

func (m *Mock) SupportedModes() (ModeMask, error) {
	return m.Modes, nil
}

func (m *Mock) ChargingEnabled() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Enabled, nil
}

func (m *Mock) SetChargingEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Enabled = enabled
	if enabled {
		m.EnableCalls++
	} else {
		m.DisableCalls++
	}
	return nil
}

func (m *Mock) SetChargingLimit(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if !m.Modes.Has(ModeLimit) {
		return pkgerrors.New("mock: limit mode not supported")
	}
	m.Limit = pct
	return nil
}

func (m *Mock) SetChargingDeadline(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if !m.Modes.Has(ModeDeadline) {
		return pkgerrors.New("mock: deadline mode not supported")
	}
	m.Deadline = d
	return nil
}

func (m *Mock) Close() error { return nil }

// State returns a copy of the mutable fields, safe to call while
// another goroutine drives the mock.
func (m *Mock) State() (enabled bool, limit int, deadline time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Enabled, m.Limit, m.Deadline
}

func (m *Mock) takeFailure() error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	return nil
}
