package cmd

import (
	"fmt"

	"github.com/anoixa/image-scraper/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "image-scraper", config.VersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
