package install

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

func Uninstall() error {
	logrus.Infof("stopping chargectl")

	err := exec.Command("systemctl", "disable", "--now", "chargectl.service").Run()
	if err != nil {
		return fmt.Errorf("failed to stop chargectl.service: %w. Are you root?", err)
	}

	logrus.Infof("removing systemd unit")

	// if the file doesn't exist, we don't need to remove it
	_, err = os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", unitPath, err)
	}

	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		logrus.Warnf("failed to reload systemd units: %v", err)
	}

	return nil
}
