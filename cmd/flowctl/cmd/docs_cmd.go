package cmd

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Open the API documentation in a browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		url := newClient().DocsURL()
		fmt.Printf("Opening %s\n", url)
		if err := browser.OpenURL(url); err != nil {
			fatal(err, "Failed to open browser")
		}
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
