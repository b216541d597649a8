package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chargectl/chargectl/pkg/charging"
	"github.com/chargectl/chargectl/pkg/version"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

// parseTimeOfDayArg accepts "HH:MM" or a plain seconds-of-day number.
func parseTimeOfDayArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	var h, m int
	if _, err := fmt.Sscanf(args[0], "%d:%d", &h, &m); err == nil {
		if h < 0 || h > 24 || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid %s: %s", valueName, args[0])
		}
		return h*3600 + m*60, nil
	}

	return parseIntArg(args, valueName)
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "enable",
		Short:   "Enable charging control",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetEnabled(true)
			if err != nil {
				return fmt.Errorf("failed to enable charging control: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully enabled charging control")

			return nil
		},
	}
}

func NewDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disable",
		Short:   "Disable charging control",
		GroupID: gBasic,
		Long: `Disable charging control.

Your battery will charge to 100% whenever power is connected.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetEnabled(false)
			if err != nil {
				return fmt.Errorf("failed to disable charging control: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully disabled charging control")

			return nil
		},
	}
}

func NewModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mode [none|auto|manual|limit]",
		Short:   "Set the charging control mode",
		GroupID: gBasic,
		Long: `Set the charging control mode.

  auto    finish charging right before the next wake alarm
  manual  finish charging inside the configured start/target time window
  limit   keep the charge at or below the configured percentage`,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("invalid number of arguments")
			}

			var mode charging.Mode
			switch args[0] {
			case "none":
				mode = charging.ModeNone
			case "auto":
				mode = charging.ModeAuto
			case "manual":
				mode = charging.ModeManual
			case "limit":
				mode = charging.ModeLimit
			default:
				return fmt.Errorf("unknown mode %q", args[0])
			}

			ret, err := apiClient.SetMode(int(mode))
			if err != nil {
				return fmt.Errorf("failed to set mode: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "limit [percentage]",
		Short:   "Set the charge limit",
		GroupID: gBasic,
		Long: `Set the charge limit.

This is a percentage from 0 to 100. It is used by the limit mode.`,
		RunE: func(_ *cobra.Command, args []string) error {
			limit, err := parseIntArg(args, "limit")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetLimit(limit)
			if err != nil {
				return fmt.Errorf("failed to set limit: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set charge limit to %d%%", limit)

			return nil
		},
	}
}

func NewStartTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "start-time [HH:MM]",
		Short:   "Set the manual charge window start time",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := parseTimeOfDayArg(args, "start time")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetStartTime(t)
			if err != nil {
				return fmt.Errorf("failed to set start time: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewTargetTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "target-time [HH:MM]",
		Short:   "Set the manual charge window target time",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := parseTimeOfDayArg(args, "target time")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetTargetTime(t)
			if err != nil {
				return fmt.Errorf("failed to set target time: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewWakeAlarmCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "wake-alarm [cron spec]",
		Short:   "Set the wake alarm used by auto mode",
		GroupID: gBasic,
		Long: `Set the wake alarm used by auto mode, as a cron expression.

Example: 'chargectl wake-alarm "30 7 * * 1-5"' wakes at 07:30 on weekdays.
An empty spec clears the alarm.`,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("invalid number of arguments")
			}

			ret, err := apiClient.SetWakeAlarm(args[0])
			if err != nil {
				return fmt.Errorf("failed to set wake alarm: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reset",
		Short:   "Reset charging control settings to defaults",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Reset()
			if err != nil {
				return fmt.Errorf("failed to reset charging control: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "cancel",
		Short:   "Pause charging control for the current charge session",
		GroupID: gAdvanced,
		Long: `Pause charging control for the current charge session.

Charging proceeds unthrottled until power is disconnected or the
battery reaches full; control resumes with the next session.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.CancelOnce()
			if err != nil {
				return fmt.Errorf("failed to cancel charging control: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}
