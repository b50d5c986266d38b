package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dashcast/dashcast/internal/config"
	"github.com/dashcast/dashcast/internal/fetcher"
	"github.com/dashcast/dashcast/internal/httpapi"
	"github.com/dashcast/dashcast/internal/manager"
	"github.com/dashcast/dashcast/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashcast conversion service",
	Long: `Start the dashcast HTTP server.

The server provides:
- REST API for adding, removing, listing, and inspecting converted streams
- An HLS file server at /hls/{id}/* for the generated playlists and segments`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "host to bind to")
	serveCmd.Flags().Int("port", 8080, "port to listen on")
	serveCmd.Flags().String("data-dir", "./data/streams", "base directory for converted stream output")
	serveCmd.Flags().String("decrypt-tool", "mp4decrypt", "default CENC decrypt tool path")
	serveCmd.Flags().Int("max-sessions", 64, "maximum number of concurrently converting streams")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("decrypt.tool_path", serveCmd.Flags().Lookup("decrypt-tool"))
	_ = viper.BindPFlag("manager.max_sessions", serveCmd.Flags().Lookup("max-sessions"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	f := fetcher.New(cfg.Fetch)

	mgr := manager.New(cfg.Storage.BaseDir, f, logger, cfg.Decrypt.ToolPath, cfg.Manager.MaxSessions)

	srv := httpapi.New(httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, mgr, logger, version.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting dashcast server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return srv.ListenAndServe(ctx)
}
