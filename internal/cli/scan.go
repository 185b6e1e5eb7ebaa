package cli

import (
	"github.com/spf13/cobra"

	"momentum-scanner/internal/app"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan in the foreground and print the ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScanOnce(cmd.Context(), app.ScanOptions{JSON: scanJSON})
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the final status as JSON")
}
