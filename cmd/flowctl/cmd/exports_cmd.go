package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Manage CSV exports uploaded with 'scan export --upload'",
}

var exportsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Download an uploaded export",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		output, _ := cmd.Flags().GetString("output")
		data, name, err := newClient().DownloadExport(cmd.Context(), args[0])
		if err != nil {
			fatal(err, "Failed to download export")
		}
		if output == "-" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if output == "" {
			output = name
		}
		if output == "" {
			output = args[0] + ".csv"
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			fatal(err, "Failed to write CSV")
		}
		fmt.Printf("Wrote %s\n", output)
	},
}

var exportsURLCmd = &cobra.Command{
	Use:   "url [id]",
	Short: "Print a fresh download URL for an uploaded export",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		link, err := newClient().ExportLink(cmd.Context(), args[0])
		if err != nil {
			fatal(err, "Failed to sign export URL")
		}
		fmt.Printf("Download URL (valid %s):\n%s\n", time.Duration(link.ExpiresIn)*time.Second, link.DownloadURL)
	},
}

var exportsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an uploaded export",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		if err := newClient().DeleteExport(cmd.Context(), args[0]); err != nil {
			fatal(err, "Failed to delete export")
		}
		fmt.Printf("Export %s deleted\n", args[0])
	},
}

func init() {
	exportsGetCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default: server file name)")

	exportsCmd.AddCommand(exportsGetCmd, exportsURLCmd, exportsDeleteCmd)
	rootCmd.AddCommand(exportsCmd)
}
