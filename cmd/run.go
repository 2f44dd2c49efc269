package cmd

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type discoveryFlags struct {
	headless  bool
	driver    string
	noManager bool
}

func (f *discoveryFlags) register(cmd *cobra.Command, headlessDefault bool) {
	cmd.Flags().BoolVar(&f.headless, "headless", headlessDefault, "run the browser without a window")
	cmd.Flags().StringVar(&f.driver, "driver", "", "path to the Chrome/Chromium executable")
	cmd.Flags().BoolVar(&f.noManager, "no-manager", false, "do not locate a browser automatically; without --driver, parse search result HTML instead")
}

var (
	runQuery string
	runNum   int
	runFlags discoveryFlags
)

// runCmd 确保查询词下有足够的图片并输出元数据
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ensure enough images for a query and print their metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		pipeline := container.Pipeline(container.DiscoveryOptions(runFlags.headless, runFlags.driver, runFlags.noManager))
		res, err := pipeline.EnsureImages(cmd.Context(), runQuery, runNum)
		if err != nil {
			return err
		}

		for _, rec := range res.Records {
			log.Info().
				Str("filename", rec.Filename).
				Str("url", rec.URL).
				Str("created_at", rec.CreatedAt.UTC().Format(time.RFC3339)).
				Msg("meta")
		}
		if len(res.Records) < runNum {
			log.Warn().
				Str("query", runQuery).
				Int("requested", runNum).
				Int("available", len(res.Records)).
				Msg("Fewer images available than requested")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runQuery, "query", "", "search keyword")
	runCmd.Flags().IntVar(&runNum, "num", 10, "number of images required")
	runFlags.register(runCmd, false)
	_ = runCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(runCmd)
}
