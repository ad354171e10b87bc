// Package main provides the diaglog command: offline analysis of ECU
// diagnostic session logs, the broker agents and the MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"diaglog/src/config"
	"diaglog/src/logger"
	"diaglog/src/pipeline"
	"diaglog/src/reference"
)

// app carries the state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	reference  string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "diaglog",
		Short: "diaglog - interpret automotive ECU diagnostic session logs",
		Long: `diaglog reads diagnostic tool session logs (text or XML), groups the
interesting lines into buckets, tracks ECU module health and concludes what
went wrong, with a risk level and recommendations.

Configuration is read from diaglog.yaml (working directory or
$HOME/.config/diaglog) and DIAGLOG_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: diaglog.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&a.reference, "reference", "", "ECU/NRC reference table file (YAML or TOML)")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newDecodeCmd(a),
		newNRCCmd(a),
		newSubmitCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.reference != "" {
		cfg.Reference = a.reference
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg
	a.log = logger.New(logger.Options{Level: level, Format: cfg.Log.Format})
	return nil
}

// engine builds an analysis engine from cfg. A nil log uses the app logger.
func (a *app) engine(cfg *config.Config, log logger.Logger) (*pipeline.Engine, error) {
	if log == nil {
		log = a.log
	}
	refs, err := loadReferences(cfg.Reference)
	if err != nil {
		return nil, err
	}
	return pipeline.New(refs, pipeline.OptionsFromConfig(cfg), pipeline.WithLogger(log)), nil
}

func loadReferences(path string) (*reference.Tables, error) {
	if path == "" {
		return reference.Default()
	}
	return reference.Load(path)
}

// signalContext is cancelled on SIGINT/SIGTERM and, when timeout is
// positive, once it elapses.
func signalContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
