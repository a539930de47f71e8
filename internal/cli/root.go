package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lifestack",
	Short: "Personal life-services aggregation gateway",
	Long:  "Lifestack fronts calendar, task, fitness and workspace services behind one cached HTTP API. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(authorizeCmd)
}
