package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"diaglog/src/config"
	"diaglog/src/ingest"
	"diaglog/src/logger"
	"diaglog/src/mcp"
	"diaglog/src/pipeline"
	"diaglog/src/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest and analyze agents against the configured broker",
		Long: `Run the ingest and analyze agents until interrupted.

The agents consume log chunks from diaglog.logs.raw, reassemble them, and
publish reports to diaglog.reports. Configure the broker with broker.type
and broker.brokers (DIAGLOG_BROKER_TYPE=redpanda,
DIAGLOG_BROKER_BROKERS=localhost:19092).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(a.cfg, nil)
			if err != nil {
				return err
			}
			brk, err := pipeline.NewBroker(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer brk.Close()

			ctx, cancel := signalContext(cmd.Context(), 0)
			defer cancel()

			a.log.Info("[Serve] Starting agents (broker=%s, brokers=%v)", a.cfg.Broker.Type, a.cfg.Broker.Brokers)
			pipeline.Start(ctx, brk, engine, store.NewMemoryStore(), a.log)

			<-ctx.Done()
			a.log.Info("[Serve] Shutdown signal received, stopping agents")
			return nil
		},
	}
}

func newSubmitCmd(a *app) *cobra.Command {
	var (
		format  string
		detach  bool
		jsonOut bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a log through the broker pipeline",
		Long: `Chunk a log and publish it to the broker pipeline, then wait for its report.

With the memory broker the agents run in-process. With Redpanda they run
under "diaglog serve"; use --detach to print the request id and exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ingest.ParseFormat(format)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read log: %w", err)
			}

			engine, err := a.engine(a.cfg, nil)
			if err != nil {
				return err
			}
			p, err := pipeline.Open(a.cfg, engine, a.log)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, cancel := signalContext(cmd.Context(), timeout)
			defer cancel()

			requestID, err := p.Submit(ctx, pipeline.SubmitRequest{
				Source:  sourceName(args[0]),
				Format:  f,
				Content: string(content),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if detach {
				_, err := fmt.Fprintln(out, requestID)
				return err
			}

			report, err := p.Wait(ctx, requestID)
			if err != nil {
				return fmt.Errorf("waiting for %s: %w", requestID, err)
			}
			output := outputText
			if jsonOut {
				output = outputJSON
			}
			return writeReport(out, report, output, budgetFor(a.cfg.Digest, 0, 0), defaultWidth)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(ingest.FormatAuto), "input format: auto, text or xml")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "print the request id and exit without waiting")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the report")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := newMCPServer(a.cfg, a.log)
			if err != nil {
				return err
			}
			return server.Run()
		},
	}
}

// newMCPServer builds the MCP server. Logs go to stderr so the stdio
// protocol stream stays clean.
func newMCPServer(cfg *config.Config, log logger.Logger) (*mcp.Server, error) {
	refs, err := loadReferences(cfg.Reference)
	if err != nil {
		return nil, err
	}
	engine := pipeline.New(refs, pipeline.OptionsFromConfig(cfg), pipeline.WithLogger(log))
	return mcp.NewServer(engine,
		mcp.WithBudget(budgetFor(cfg.Digest, 0, 0)),
		mcp.WithLogger(log),
	), nil
}
