// Package cli wires the cobra command tree around the sync engine.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "toggl-redmine-sync",
	Short: "Sync Toggl time entries into Redmine",
	Long: `toggl-redmine-sync reconciles Toggl time entries with Redmine time
entries day by day and writes unsynced or changed entries to Redmine.
Synced Toggl entries are tagged with "#synced".`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/local.yaml", "path to configuration file")
	rootCmd.AddCommand(syncCmd)
}
