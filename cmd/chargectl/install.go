package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chargectl/chargectl/pkg/install"
)

func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Install the chargectl daemon as a systemd service",
		Long:    "Install the chargectl daemon as a systemd service (system-wide). This makes chargectl run in the background and automatically start on boot. You must run this command as root.",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := install.Install()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			logrus.Infof("installation succeeded. systemd will use the current binary so you need to make sure you do not move it. Once this binary is moved or deleted, you will need to run chargectl install again.")

			return nil
		},
	}
}

func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall the chargectl daemon from systemd",
		Long: `Uninstall the chargectl daemon from systemd (system-wide).

This stops the daemon and removes its service unit. You must run this command as root.`,
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := install.Uninstall()
			if err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("chargectl daemon uninstalled")

			return nil
		},
	}
}
