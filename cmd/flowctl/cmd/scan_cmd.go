package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RMahshie/flowrig/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run and inspect frequency sweeps",
}

var scanStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a frequency sweep",
	Long: `Start a frequency sweep over [min, max] in increments of step. ` +
		`Omitted values take the server defaults (10-50 Hz in 5 Hz steps).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		minHz, _ := cmd.Flags().GetFloat64("min")
		maxHz, _ := cmd.Flags().GetFloat64("max")
		step, _ := cmd.Flags().GetFloat64("step")
		wait, _ := cmd.Flags().GetBool("wait")
		interval, _ := cmd.Flags().GetDuration("interval")

		c := newClient()
		started, err := c.StartScan(cmd.Context(), models.StartScanBody{
			MinFrequency: minHz,
			MaxFrequency: maxHz,
			Step:         step,
		})
		if err != nil {
			fatal(err, "Failed to start sweep")
		}
		fmt.Printf("Sweep %s started (%d steps)\n", started.SweepID, started.TotalSteps)
		if !wait {
			return
		}

		last := -1
		final, err := c.WaitForSweep(cmd.Context(), interval, func(p *models.SweepProgress) {
			if p.CompletedSteps != last {
				last = p.CompletedSteps
				fmt.Printf("[%3d%%] %s\n", p.Progress, p.CurrentStep)
			}
		})
		if err != nil {
			fatal(err, "Failed to follow sweep")
		}
		printProgress(final)
		if final.State == models.SweepError {
			os.Exit(1)
		}
	},
}

var scanStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running sweep after its current step",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		if err := newClient().StopScan(cmd.Context()); err != nil {
			fatal(err, "Failed to stop sweep")
		}
		fmt.Println("Sweep stopping")
	},
}

var scanResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return a completed or failed sweep to idle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		if err := newClient().ResetScan(cmd.Context()); err != nil {
			fatal(err, "Failed to reset sweep")
		}
		fmt.Println("Sweep reset")
	},
}

var scanProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show sweep progress",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		p, err := newClient().Progress(cmd.Context())
		if err != nil {
			fatal(err, "Failed to get progress")
		}
		printProgress(p)
	},
}

var scanDataCmd = &cobra.Command{
	Use:   "data",
	Short: "Print the collected data points",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		clearData, _ := cmd.Flags().GetBool("clear")
		c := newClient()
		if clearData {
			if err := c.ClearData(cmd.Context()); err != nil {
				fatal(err, "Failed to clear data")
			}
			fmt.Println("Data cleared")
			return
		}

		points, err := c.Data(cmd.Context())
		if err != nil {
			fatal(err, "Failed to get data")
		}
		printPoints(points)
	},
}

var scanExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the collected data as CSV",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		output, _ := cmd.Flags().GetString("output")
		upload, _ := cmd.Flags().GetBool("upload")
		c := newClient()

		if upload {
			result, err := c.UploadExport(cmd.Context())
			if err != nil {
				fatal(err, "Failed to upload export")
			}
			fmt.Printf("Uploaded %d points as export %s (%s)\n", result.Points, result.ID, result.Key)
			fmt.Printf("Download URL (valid %s):\n%s\n", time.Duration(result.ExpiresIn)*time.Second, result.DownloadURL)
			return
		}

		data, name, err := c.ExportCSV(cmd.Context())
		if err != nil {
			fatal(err, "Failed to export data")
		}
		if output == "-" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if output == "" {
			output = name
		}
		if output == "" {
			output = "flow_data.csv"
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			fatal(err, "Failed to write CSV")
		}
		fmt.Printf("Wrote %s\n", output)
	},
}

func printProgress(p *models.SweepProgress) {
	fmt.Printf("State:    %s\n", p.State)
	fmt.Printf("Progress: %d%% (%d/%d)\n", p.Progress, p.CompletedSteps, p.TotalSteps)
	if p.CurrentStep != "" {
		fmt.Printf("Step:     %s\n", p.CurrentStep)
	}
	if p.SweepID != "" {
		fmt.Printf("Sweep:    %s\n", p.SweepID)
	}
	if p.LastDataPoint != nil {
		fmt.Printf("Last:     %g Hz -> %.3f L/min\n", p.LastDataPoint.Frequency, p.LastDataPoint.FlowRate)
	}
	if p.Error != "" {
		fmt.Printf("Error:    %s\n", p.Error)
	}
}

func printPoints(points []models.DataPoint) {
	if len(points) == 0 {
		fmt.Println("No data collected")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FREQUENCY (Hz)\tFLOW RATE (L/min)")
	for _, p := range points {
		fmt.Fprintf(w, "%g\t%.3f\n", p.Frequency, p.FlowRate)
	}
	_ = w.Flush()
}

func init() {
	scanStartCmd.Flags().Float64("min", 0, "first frequency in Hz")
	scanStartCmd.Flags().Float64("max", 0, "last frequency in Hz (inclusive)")
	scanStartCmd.Flags().Float64("step", 0, "frequency increment in Hz")
	scanStartCmd.Flags().BoolP("wait", "w", false, "follow progress until the sweep finishes")
	scanStartCmd.Flags().Duration("interval", time.Second, "progress poll interval with --wait")

	scanDataCmd.Flags().Bool("clear", false, "discard the collected data instead of printing it")

	scanExportCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default: server file name)")
	scanExportCmd.Flags().Bool("upload", false, "upload to object storage and print a download URL")

	scanCmd.AddCommand(scanStartCmd, scanStopCmd, scanResetCmd, scanProgressCmd, scanDataCmd, scanExportCmd)
	rootCmd.AddCommand(scanCmd)
}
