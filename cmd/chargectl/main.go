package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chargectl/chargectl/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/chargectl.sock"
	settingsPath   = "/etc/chargectl.json"
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

var apiClient = client.NewClient(unixSocketPath)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: chargectl daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or run the daemon with '--always-allow-non-root-access' to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chargectl",
		Short: "chargectl controls when and how far your battery charges",
		Long: `chargectl controls when and how far your battery charges.

It can hold the charge at a percentage ceiling, finish charging right
before your next wake alarm, or finish inside a time window you choose.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	for _, g := range commandGroups {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		NewStatusCommand(),
		NewEnableCommand(),
		NewDisableCommand(),
		NewModeCommand(),
		NewLimitCommand(),
		NewStartTimeCommand(),
		NewTargetTimeCommand(),
		NewWakeAlarmCommand(),
		NewResetCommand(),
		NewCancelCommand(),
		NewVersionCommand(),
		NewDaemonCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
