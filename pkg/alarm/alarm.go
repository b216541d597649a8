// Package alarm exposes the next scheduled wake alarm. The automatic
// charging mode plans charging so the battery is full right before it.
package alarm

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/events"
)

// Source reports the next wake alarm, if one is scheduled.
type Source interface {
	NextAlarm() (time.Time, bool)
}

// Cron derives the next wake alarm from a cron spec. An empty spec
// means no alarm is scheduled.
type Cron struct {
	hub    *events.Hub
	parser cron.Parser
	now    func() time.Time

	mu       sync.RWMutex
	spec     string
	schedule cron.Schedule
}

func NewCron(hub *events.Hub) *Cron {
	return &Cron{
		hub: hub,
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now: time.Now,
	}
}

// SetSpec replaces the wake alarm schedule and announces the change.
// An empty spec clears the alarm.
func (c *Cron) SetSpec(spec string) error {
	var schedule cron.Schedule
	if spec != "" {
		var err error
		schedule, err = c.parser.Parse(spec)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid wake alarm spec %q", spec)
		}
	}

	c.mu.Lock()
	c.spec = spec
	c.schedule = schedule
	c.mu.Unlock()

	logrus.WithField("spec", spec).Info("wake alarm updated")
	c.hub.Publish(events.AlarmChanged, nil)
	return nil
}

func (c *Cron) Spec() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spec
}

func (c *Cron) NextAlarm() (time.Time, bool) {
	c.mu.RLock()
	schedule := c.schedule
	c.mu.RUnlock()

	if schedule == nil {
		return time.Time{}, false
	}
	return schedule.Next(c.now()), true
}

// Fixed is a Source with a fixed next alarm, used in tests.
type Fixed struct {
	At  time.Time
	Set bool
}

func (f *Fixed) NextAlarm() (time.Time, bool) { return f.At, f.Set }
