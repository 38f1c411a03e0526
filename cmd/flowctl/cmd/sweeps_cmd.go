package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sweepsCmd = &cobra.Command{
	Use:   "sweeps",
	Short: "Browse recorded sweeps",
}

var sweepsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sweeps, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		limit, _ := cmd.Flags().GetInt("limit")
		sweeps, err := newClient().ListSweeps(cmd.Context(), limit)
		if err != nil {
			fatal(err, "Failed to list sweeps")
		}
		if len(sweeps) == 0 {
			fmt.Println("No sweeps recorded")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRANGE (Hz)\tSTATE\tPROGRESS\tCREATED")
		for _, s := range sweeps {
			fmt.Fprintf(w, "%s\t%g-%g/%g\t%s\t%d%%\t%s\n",
				s.ID, s.MinFrequency, s.MaxFrequency, s.Step, s.State, s.Progress,
				s.CreatedAt.Local().Format(time.DateTime))
		}
		_ = w.Flush()
	},
}

var sweepsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a sweep and its data points",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		detail, err := newClient().GetSweep(cmd.Context(), args[0])
		if err != nil {
			fatal(err, "Failed to get sweep")
		}

		s := detail.Sweep
		fmt.Printf("ID:       %s\n", s.ID)
		fmt.Printf("Range:    %g-%g Hz, step %g Hz\n", s.MinFrequency, s.MaxFrequency, s.Step)
		fmt.Printf("State:    %s (%d%%)\n", s.State, s.Progress)
		fmt.Printf("Created:  %s\n", s.CreatedAt.Local().Format(time.DateTime))
		if s.CompletedAt != nil {
			fmt.Printf("Finished: %s\n", s.CompletedAt.Local().Format(time.DateTime))
		}
		if s.ErrorMsg != nil {
			fmt.Printf("Error:    %s\n", *s.ErrorMsg)
		}
		fmt.Println()
		printPoints(detail.DataPoints)
	},
}

func init() {
	sweepsListCmd.Flags().IntP("limit", "n", 0, "maximum number of sweeps (default: server default)")

	sweepsCmd.AddCommand(sweepsListCmd, sweepsGetCmd)
	rootCmd.AddCommand(sweepsCmd)
}
