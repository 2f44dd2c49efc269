package cmd

import (
	"github.com/anoixa/image-scraper/internal/exporter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportQuery string
	exportLimit int
)

// exportCmd 导出某查询词下最新的图片
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored images of a query as JPEG files",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		exp, err := container.Exporter()
		if err != nil {
			return err
		}

		report, err := exp.Export(cmd.Context(), exportQuery, exportLimit)
		if err != nil {
			return err
		}
		log.Info().
			Str("dir", report.Dir).
			Int("exported", report.Exported).
			Int("failed", report.Failed).
			Msg("Export finished")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportQuery, "query", "", "search keyword")
	exportCmd.Flags().IntVar(&exportLimit, "limit", exporter.DefaultLimit, "maximum number of images to export")
	_ = exportCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(exportCmd)
}
