package hal

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultPowerSupplyRoot = "/sys/class/power_supply"

// Sysfs drives charging through the Linux power_supply class. Not every
// platform exposes every knob, so capabilities are probed at Open time
// from which attribute files actually exist.
type Sysfs struct {
	batteryDir string
	modes      ModeMask
}

// OpenSysfs probes root (the power_supply class directory, or "" for
// the default) for a battery with charging-control attributes. It
// returns an error when no controllable battery is found; the caller
// then runs with charging control unsupported.
func OpenSysfs(root string) (*Sysfs, error) {
	if root == "" {
		root = defaultPowerSupplyRoot
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %s", root)
	}

	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		typ, err := os.ReadFile(filepath.Join(dir, "type"))
		if err != nil || strings.TrimSpace(string(typ)) != "Battery" {
			continue
		}

		s := &Sysfs{batteryDir: dir}
		s.modes = s.probe()
		if s.modes == 0 {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"battery": e.Name(),
			"modes":   s.modes.String(),
		}).Info("found charging-control capable battery")
		return s, nil
	}

	return nil, pkgerrors.Errorf("no charging-control capable battery under %s", root)
}

func (s *Sysfs) probe() ModeMask {
	var m ModeMask
	if _, err := os.Stat(filepath.Join(s.batteryDir, "charge_control_end_threshold")); err == nil {
		m |= ModeLimit
	}
	if b, err := os.ReadFile(filepath.Join(s.batteryDir, "charge_behaviour")); err == nil {
		behaviours := string(b)
		if strings.Contains(behaviours, "inhibit-charge") {
			m |= ModeToggle
		}
		if strings.Contains(behaviours, "force-discharge") {
			m |= ModeBypass
		}
	}
	if _, err := os.Stat(filepath.Join(s.batteryDir, "charge_deadline")); err == nil {
		m |= ModeDeadline
	}
	return m
}

func (s *Sysfs) SupportedModes() (ModeMask, error) {
	return s.modes, nil
}

func (s *Sysfs) ChargingEnabled() (bool, error) {
	b, err := s.read("charge_behaviour")
	if err != nil {
		return false, err
	}
	// The active behaviour is bracketed, e.g. "[auto] inhibit-charge".
	return strings.Contains(b, "[auto]"), nil
}

func (s *Sysfs) SetChargingEnabled(enabled bool) error {
	behaviour := "inhibit-charge"
	if enabled {
		behaviour = "auto"
	}
	return s.write("charge_behaviour", behaviour)
}

func (s *Sysfs) SetChargingLimit(pct int) error {
	if !s.modes.Has(ModeLimit) {
		return pkgerrors.New("charge limit not supported by this battery")
	}
	return s.write("charge_control_end_threshold", strconv.Itoa(pct))
}

func (s *Sysfs) SetChargingDeadline(d time.Duration) error {
	if !s.modes.Has(ModeDeadline) {
		return pkgerrors.New("charge deadline not supported by this battery")
	}
	return s.write("charge_deadline", strconv.FormatInt(int64(d.Seconds()), 10))
}

func (s *Sysfs) Close() error { return nil }

func (s *Sysfs) read(attr string) (string, error) {
	path := filepath.Join(s.batteryDir, attr)
	logrus.WithField("attr", attr).Trace("reading power_supply attribute")

	b, err := os.ReadFile(path)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to read %s", path)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *Sysfs) write(attr, value string) error {
	path := filepath.Join(s.batteryDir, attr)
	logrus.WithFields(logrus.Fields{
		"attr": attr,
		"val":  value,
	}).Trace("writing power_supply attribute")

	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
