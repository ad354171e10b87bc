// Package main provides the standalone MCP server entry point for diaglog.
// It exposes analyze_log, get_bucket_details, decode_hex and explain_nrc
// over the stdio transport.
package main

import (
	"fmt"
	"os"

	"diaglog/src/config"
	"diaglog/src/digest"
	"diaglog/src/logger"
	"diaglog/src/mcp"
	"diaglog/src/pipeline"
	"diaglog/src/reference"
)

func main() {
	cfg, err := config.Load(os.Getenv("DIAGLOG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol; logs go to stderr.
	log := logger.New(logger.Options{Level: level, Format: cfg.Log.Format})

	refs := reference.MustDefault()
	if cfg.Reference != "" {
		if refs, err = reference.Load(cfg.Reference); err != nil {
			fmt.Fprintf(os.Stderr, "Reference tables: %v\n", err)
			os.Exit(1)
		}
	}

	engine := pipeline.New(refs, pipeline.OptionsFromConfig(cfg), pipeline.WithLogger(log))
	server := mcp.NewServer(engine,
		mcp.WithBudget(digest.Budget{MaxChars: cfg.Digest.MaxChars, MaxTokens: cfg.Digest.MaxTokens}),
		mcp.WithLogger(log),
	)

	if err := server.Run(); err != nil {
		log.Error("MCP server error: %v", err)
		os.Exit(1)
	}
}
