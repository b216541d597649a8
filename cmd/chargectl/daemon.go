package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chargectl/chargectl/pkg/daemon"
	"github.com/chargectl/chargectl/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the daemon.
	alwaysAllowNonRootAccess = false
	// powerSupplyRoot overrides the power_supply class directory, mainly for development.
	powerSupplyRoot = ""
)

func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run the chargectl daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("chargectl daemon starting")
			return daemon.Run(settingsPath, unixSocketPath, powerSupplyRoot, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.StringVar(&settingsPath, "settings", settingsPath, "Path to the settings file.")
	f.StringVar(&unixSocketPath, "socket", unixSocketPath, "Path to the daemon unix socket.")
	f.StringVar(&powerSupplyRoot, "power-supply-root", powerSupplyRoot,
		"Override the power_supply sysfs directory.")

	return cmd
}
