package charging

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/alarm"
)

// autoLeadTime is how long before the wake alarm automatic mode starts
// planning the charge.
const autoLeadTime = 9 * time.Hour

// ChargeTime is the computed charge-completion window. Derived per
// evaluation, never persisted.
type ChargeTime struct {
	Start  time.Time
	Target time.Time
}

// computeChargeTime derives the charging window for deadline-style
// modes. It returns nil when no plan can be made: automatic mode with
// no scheduled alarm, or a mode without a window.
func computeChargeTime(m Mode, now time.Time, alarms alarm.Source, startOfDay, targetOfDay int) *ChargeTime {
	switch m {
	case ModeAuto:
		if alarms == nil {
			logrus.Error("no alarm source, auto charging control has no effect")
			return nil
		}
		next, ok := alarms.NextAlarm()
		if !ok {
			logrus.Warn("no alarm found, auto charging control has no effect")
			return nil
		}
		return &ChargeTime{Start: next.Add(-autoLeadTime), Target: next}

	case ModeManual:
		start := timeOfDay(now, startOfDay)
		target := timeOfDay(now, targetOfDay)

		// Produce the next not-yet-elapsed window. A start-of-day after
		// the target-of-day means the window crosses midnight.
		if start.After(target) {
			if now.After(target) {
				target = target.AddDate(0, 0, 1)
			} else {
				start = start.AddDate(0, 0, -1)
			}
		} else if !now.Before(target) {
			start = start.AddDate(0, 0, 1)
			target = target.AddDate(0, 0, 1)
		}
		return &ChargeTime{Start: start, Target: target}
	}

	logrus.Errorf("invalid charging control mode %s", m)
	return nil
}

// timeOfDay anchors a seconds-of-day value to the calendar day of ref.
func timeOfDay(ref time.Time, secondOfDay int) time.Time {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return midnight.Add(time.Duration(secondOfDay) * time.Second)
}
