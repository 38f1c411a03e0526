package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RMahshie/flowrig/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device and sweep status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		status, err := newClient().Status(cmd.Context())
		if err != nil {
			fatal(err, "Failed to get status")
		}
		printStatus(status)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the pump and flow meter",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		result, err := newClient().Connect(cmd.Context())
		if err != nil {
			fatal(err, "Failed to connect devices")
		}
		fmt.Printf("Pump connected:       %t\n", result.PumpConnected)
		fmt.Printf("Flow meter connected: %t\n", result.FlowMeterConnected)
	},
}

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Control the pump manually",
}

var pumpStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pump",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		if err := newClient().StartPump(cmd.Context()); err != nil {
			fatal(err, "Failed to start pump")
		}
		fmt.Println("Pump started")
	},
}

var pumpStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the pump",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		if err := newClient().StopPump(cmd.Context()); err != nil {
			fatal(err, "Failed to stop pump")
		}
		fmt.Println("Pump stopped")
	},
}

var pumpFreqCmd = &cobra.Command{
	Use:   "freq [hz]",
	Short: "Set the frequency of the running pump",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		hz, err := strconv.ParseFloat(args[0], 64)
		if err != nil || hz <= 0 {
			fatal(fmt.Errorf("invalid frequency %q", args[0]), "Frequency must be a positive number")
		}
		if err := newClient().SetFrequency(cmd.Context(), hz); err != nil {
			fatal(err, "Failed to set frequency")
		}
		fmt.Printf("Frequency set to %g Hz\n", hz)
	},
}

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Read the flow meter",
}

var flowReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Take a single flow reading",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		flow, err := newClient().ReadFlow(cmd.Context())
		if err != nil {
			fatal(err, "Failed to read flow")
		}
		fmt.Printf("%.3f L/min\n", flow)
	},
}

var flowStableCmd = &cobra.Command{
	Use:   "stable",
	Short: "Check whether recent readings are stable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		stable, err := newClient().FlowStable(cmd.Context())
		if err != nil {
			fatal(err, "Failed to check stability")
		}
		if stable {
			fmt.Println("stable")
		} else {
			fmt.Println("not stable")
		}
	},
}

func printStatus(s *models.SystemStatus) {
	fmt.Printf("Pump connected:       %t\n", s.PumpConnected)
	fmt.Printf("Flow meter connected: %t\n", s.FlowMeterConnected)
	fmt.Printf("Pump running:         %t\n", s.PumpRunning)
	fmt.Printf("Frequency:            %s\n", optional(s.CurrentFrequency, "%g Hz"))
	fmt.Printf("Flow rate:            %s\n", optional(s.CurrentFlowRate, "%.3f L/min"))
	fmt.Printf("Flow stable:          %t\n", s.FlowRateStable)
	fmt.Printf("Scanning:             %t (%d%%)\n", s.Scanning, s.ScanProgress)
	if s.Error != nil {
		fmt.Printf("Error:                %s\n", *s.Error)
	}
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func init() {
	pumpCmd.AddCommand(pumpStartCmd, pumpStopCmd, pumpFreqCmd)
	flowCmd.AddCommand(flowReadCmd, flowStableCmd)
	rootCmd.AddCommand(statusCmd, connectCmd, pumpCmd, flowCmd)
}
