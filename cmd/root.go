package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/anoixa/image-scraper/config"
	"github.com/anoixa/image-scraper/internal/app"
	"github.com/anoixa/image-scraper/utils/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "image-scraper",
	Short:         "Search, download and deduplicate images by keyword",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("Interrupted")
		} else {
			log.Error().Err(err).Msg("Command failed")
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "env file path (eg: /etc/image-scraper/.env)")
	err := viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		return
	}
}

// bootstrap 加载配置、初始化日志并打开容器
// 返回的 cleanup 关闭容器与日志文件
func bootstrap(ctx context.Context) (*app.Container, func(), error) {
	if err := config.InitConfig(); err != nil {
		return nil, nil, err
	}
	cfg := config.Get()

	logCloser := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	container := app.NewContainer(cfg)
	if err := container.Init(ctx); err != nil {
		closeQuietly(logCloser)
		return nil, nil, err
	}

	cleanup := func() {
		if err := container.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing container")
		}
		closeQuietly(logCloser)
	}
	return container, cleanup, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
