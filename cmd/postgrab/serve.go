package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postgrab/internal/bridge"
	"postgrab/pkg/grabber"
	"postgrab/pkg/ui"
)

var serveListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP/WebSocket bridge",
	Long: `Run a local server exposing extraction and the download queue over
HTTP, with queue events streamed to WebSocket clients.

The bridge binds to loopback by default and is meant for local front ends
such as browser helpers and scripts.`,
	Example: `  postgrab serve
  postgrab serve --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "bridge listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListenAddr != "" {
		cfg.Bridge.ListenAddr = serveListenAddr
	}

	g, err := grabber.New(cfg, nil)
	if err != nil {
		return err
	}
	srv := bridge.NewServer(g, cfg.Bridge, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	if !quiet {
		ui.PrintInfo("Bridge", cfg.Bridge.ListenAddr)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
