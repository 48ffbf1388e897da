// Package main provides the docuchat server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/docuchat/dchat/chat"
	"github.com/ZanzyTHEbar/docuchat/dchat/config"
	"github.com/ZanzyTHEbar/docuchat/dchat/server"
)

var (
	configPath string
	version    = "0.1.0" // set at build time
)

var rootCmd = &cobra.Command{
	Use:   "docuchat",
	Short: "docuchat - document chat with streaming answers",
	Long: `Docuchat serves a single-session document chat over HTTP: a browser UI
streams agent answers as they are produced while bounded history, tool-call
validation and usage metrics are handled server-side.`,
	Version: version,
	RunE:    run,
}

func main() {
	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: search ./config.yaml)")
	rootCmd.Flags().String("addr", "", "Listen address, overrides config")
	rootCmd.Flags().String("log-level", "", "Log level (debug|info|warn|error), overrides config")

	// Changed flags take priority over config file and env values.
	if err := viper.BindPFlag("dchat.server.addr", rootCmd.Flags().Lookup("addr")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding addr flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("dchat.logging.level", rootCmd.Flags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info().Str("version", version).Msg("starting docuchat")

	factory := chat.NewFactory(cfg, logger)
	session := factory.CreateSession()
	orch := factory.CreateOrchestrator(session)
	cache := factory.CreateRenderCache()

	srv := server.New(cfg, logger, session, orch, cache)

	// Live-reload the history knobs when the config file changes.
	if file := viper.ConfigFileUsed(); file != "" {
		watcher, err := config.NewWatcher(file, logger, srv.ApplyHistoryUpdate)
		if err != nil {
			logger.Warn().Err(err).Msg("config watcher disabled")
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.DChat.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.DChat.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if cfg.DChat.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
