package commands

import (
	"github.com/spf13/cobra"

	"ATLAS-backend/internal/platform/db"
)

var (
	version = "dev"
	commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "ATLAS time & duty tracking backend",
	Long: `atlas serves the attendance, work session, break and manual log API
and builds per-day timelines for each user.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("atlas %s (%s)\n", version, commit)
	},
}

// SetVersion is called from main with ldflags values.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", db.DefaultConfigFilePath, "path to config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(autoOffCmd)
	rootCmd.AddCommand(versionCmd)
}
