package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chargectl/chargectl/pkg/charging"
	"github.com/chargectl/chargectl/pkg/client"
)

type statusData struct {
	supported   bool
	enabled     bool
	mode        charging.Mode
	limit       int
	startTime   int
	targetTime  int
	fineGrained bool
	wakeAlarm   string
	battery     *client.BatteryStatus
}

func bold(format string, a ...any) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func bool2Text(b bool) string {
	if b {
		return color.GreenString("✔")
	}
	return color.RedString("✘")
}

func formatSecondOfDay(s int) string {
	return fmt.Sprintf("%02d:%02d", s/3600, s%3600/60)
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	supported, err := apiClient.GetSupported()
	if err != nil {
		return nil, fmt.Errorf("failed to check charging control support: %w", err)
	}

	data := &statusData{supported: supported}
	if !supported {
		return data, nil
	}

	if data.enabled, err = apiClient.GetEnabled(); err != nil {
		return nil, fmt.Errorf("failed to get enabled: %w", err)
	}
	mode, err := apiClient.GetMode()
	if err != nil {
		return nil, fmt.Errorf("failed to get mode: %w", err)
	}
	data.mode = charging.Mode(mode)
	if data.limit, err = apiClient.GetLimit(); err != nil {
		return nil, fmt.Errorf("failed to get limit: %w", err)
	}
	if data.startTime, err = apiClient.GetStartTime(); err != nil {
		return nil, fmt.Errorf("failed to get start time: %w", err)
	}
	if data.targetTime, err = apiClient.GetTargetTime(); err != nil {
		return nil, fmt.Errorf("failed to get target time: %w", err)
	}
	if data.fineGrained, err = apiClient.GetFineGrained(); err != nil {
		return nil, fmt.Errorf("failed to check fine-grained support: %w", err)
	}
	if data.wakeAlarm, err = apiClient.GetWakeAlarm(); err != nil {
		return nil, fmt.Errorf("failed to get wake alarm: %w", err)
	}
	if data.battery, err = apiClient.GetBattery(); err != nil {
		return nil, fmt.Errorf("failed to get battery status: %w", err)
	}

	return data, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of charging control",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if !data.supported {
				cmd.Println("Charging control is " + bold("not supported") + " on this device.")
				return nil
			}

			cmd.Println(bold("Charging control:"))
			cmd.Println("  Enabled: " + bool2Text(data.enabled))
			cmd.Printf("  Mode: %s\n", bold(data.mode.String()))

			switch data.mode {
			case charging.ModeLimit:
				cmd.Printf("  Charge limit: %s\n", bold("%d%%", data.limit))
			case charging.ModeManual:
				cmd.Printf("  Charge window: %s - %s\n",
					bold(formatSecondOfDay(data.startTime)),
					bold(formatSecondOfDay(data.targetTime)))
			case charging.ModeAuto:
				if data.wakeAlarm == "" {
					cmd.Println("  Wake alarm: " + color.YellowString("not set") +
						" (auto mode has no effect without one)")
				} else {
					cmd.Printf("  Wake alarm: %s\n", bold(data.wakeAlarm))
				}
			}

			cmd.Println("  Fine-grained settings: " + bool2Text(data.fineGrained))

			cmd.Println()
			cmd.Println(bold("Battery status:"))
			cmd.Printf("  Current charge: %s\n", bold("%.0f%%", data.battery.Percent))
			cmd.Printf("  State: %s\n", data.battery.Status)
			cmd.Println("  Plugged in: " + bool2Text(data.battery.Plugged))

			cmd.Println()
			cmd.Printf("Checked at %s\n", time.Now().Format(time.Kitchen))

			return nil
		},
	}
}
