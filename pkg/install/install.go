// Package install writes and manages the systemd unit that keeps the
// daemon running in the background and starts it on boot.
package install

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	//go:embed chargectl.service
	unitTemplate string
	unitPath     = "/etc/systemd/system/chargectl.service"
)

func Install() error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	tmpl := strings.ReplaceAll(unitTemplate, "/path/to/chargectl", exePath)

	logrus.Infof("writing systemd unit to %s", unitPath)

	_, err = os.Stat(unitPath)
	if err == nil {
		return fmt.Errorf("%s already exists. Did you forget to uninstall chargectl before installing it again? Please uninstall it first, by running 'sudo chargectl uninstall'. If you already removed chargectl, you can solve this problem by 'sudo rm %s'", unitPath, unitPath)
	}

	err = os.WriteFile(unitPath, []byte(tmpl), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	err = os.Chown(unitPath, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to chown %s: %w", unitPath, err)
	}

	logrus.Infof("starting chargectl")

	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("failed to reload systemd units: %w", err)
	}
	if err := exec.Command("systemctl", "enable", "--now", "chargectl.service").Run(); err != nil {
		return fmt.Errorf("failed to enable chargectl.service: %w", err)
	}

	return nil
}
