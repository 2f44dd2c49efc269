package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anoixa/image-scraper/api/core"
	"github.com/anoixa/image-scraper/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveFlags discoveryFlags

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServer(cmd.Context())
	},
}

func init() {
	serveFlags.register(serveCmd, true)
	rootCmd.AddCommand(serveCmd)
}

// RunServer 启动 HTTP 服务，ctx 取消后优雅退出
func RunServer(ctx context.Context) error {
	container, cleanupContainer, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanupContainer()

	cfg := container.GetConfig()
	pipeline := container.Pipeline(container.DiscoveryOptions(serveFlags.headless, serveFlags.driver, serveFlags.noManager))

	// 创建服务器依赖
	deps := &core.ServerDependencies{
		Config:   cfg,
		Store:    container.Store(),
		Acquirer: pipeline,
		Metrics:  container.Metrics(),
	}

	// 启动gin
	server, cleanup := core.StartServer(deps)
	defer cleanup()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("version", config.VersionString()).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 处理退出signal
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	log.Info().Msg("Server exited successfully")
	return nil
}
