package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"postgrab/pkg/config"
	"postgrab/pkg/logger"
)

var (
	// Version information, stamped at build time.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "postgrab",
	Short: "Download every image from a social media post",
	Long: `postgrab extracts and downloads images from post pages on Threads,
Instagram, Facebook, and X/Twitter.

Features:
  - Platform-aware extraction with a static-detection fallback
  - Multi-image carousel navigation
  - Concurrent downloads with retry and backoff
  - Session storage in the system keychain
  - A local HTTP/WebSocket bridge for external front ends`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .postgrab.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console output except errors")

	rootCmd.SetVersionTemplate(`postgrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
