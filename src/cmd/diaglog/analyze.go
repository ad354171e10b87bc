package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"diaglog/src/config"
	"diaglog/src/contracts"
	"diaglog/src/diagerr"
	"diaglog/src/digest"
	"diaglog/src/ingest"
	"diaglog/src/logger"
	"diaglog/src/pipeline"
	"diaglog/src/tui"
)

// Output modes of analyze and submit.
const (
	outputText   = "text"
	outputJSON   = "json"
	outputDigest = "digest"
)

const defaultWidth = 100

type analyzeOptions struct {
	format      string
	jsonOut     bool
	digestOut   bool
	interactive bool
	bestEffort  bool
	maxChars    int
	maxTokens   int
	workers     int
	width       int
	timeout     time.Duration
}

func (o *analyzeOptions) output() string {
	switch {
	case o.jsonOut:
		return outputJSON
	case o.digestOut:
		return outputDigest
	}
	return outputText
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Analyze one or more diagnostic session logs",
		Long: `Analyze diagnostic session logs and print the report.

With several files the logs are analysed in parallel and their conclusions
are merged. Use "-" to read a single log from stdin.

Example:
  diaglog analyze fdrs_session.log
  diaglog analyze --format text broken.xml
  diaglog analyze --digest --max-tokens 500 session.log
  diaglog analyze --json pcm.log bcm.log`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", string(ingest.FormatAuto), "input format: auto, text or xml")
	f.BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	f.BoolVar(&opts.digestOut, "digest", false, "print the budgeted AI digest")
	f.BoolVar(&opts.interactive, "tui", false, "browse the report in the interactive viewer")
	f.BoolVar(&opts.bestEffort, "best-effort", false, "return a partial report on cancellation or a mid-stream input error")
	f.IntVar(&opts.maxChars, "max-chars", 0, "digest character budget")
	f.IntVar(&opts.maxTokens, "max-tokens", 0, "digest token budget")
	f.IntVar(&opts.workers, "workers", 0, "parallel analyses for several files")
	f.IntVar(&opts.width, "width", defaultWidth, "width of the text report")
	f.DurationVar(&opts.timeout, "timeout", 0, "cancel the analysis after this long")
	cmd.MarkFlagsMutuallyExclusive("json", "digest", "tui")

	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, opts *analyzeOptions, args []string) error {
	format, err := ingest.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg := *a.cfg
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}

	// Logs would corrupt the viewer.
	var log logger.Logger
	if opts.interactive {
		log = logger.NewSilentLogger()
	}
	engine, err := a.engine(&cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), cfg.Timeout)
	defer cancel()

	budget := budgetFor(cfg.Digest, opts.maxChars, opts.maxTokens)
	out := cmd.OutOrStdout()

	if len(args) > 1 {
		if opts.interactive {
			return errors.New("--tui takes a single file")
		}
		return a.runMany(ctx, engine, out, args, format, opts, budget)
	}

	path := args[0]
	req := pipeline.Request{
		RequestID:  ingest.NewRequestID(),
		Source:     sourceName(path),
		Format:     format,
		BestEffort: opts.bestEffort,
	}
	analyzeOne := func(ctx context.Context) (*contracts.Report, error) {
		return analyzeInput(ctx, engine, cmd.InOrStdin(), path, req)
	}

	if opts.interactive {
		return tui.RunAnalysis(ctx, req.Source, analyzeOne)
	}

	report, err := analyzeOne(ctx)
	if report == nil {
		return diagerr.WrapError(err)
	}
	if err != nil {
		a.log.Error("[Analyze] Partial report for %s: %v", req.Source, err)
	}
	return writeReport(out, report, opts.output(), budget, opts.width)
}

func (a *app) runMany(ctx context.Context, engine *pipeline.Engine, out io.Writer, paths []string, format ingest.Format, opts *analyzeOptions, budget digest.Budget) error {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		if p == "-" {
			return errors.New("stdin can only be analysed on its own")
		}
		inputs = append(inputs, pipeline.Input{
			Path: p,
			Request: pipeline.Request{
				RequestID:  ingest.NewRequestID(),
				Source:     sourceName(p),
				Format:     format,
				BestEffort: opts.bestEffort,
			},
		})
	}

	multi, err := engine.AnalyzeMany(ctx, inputs)
	if err != nil {
		return diagerr.WrapError(err)
	}
	if err := writeMulti(out, multi, opts.output(), budget, opts.width); err != nil {
		return err
	}
	if len(multi.Reports) == 0 {
		return fmt.Errorf("none of the %d logs could be analysed", len(paths))
	}
	return nil
}

// analyzeInput analyses path, or in when path is "-".
func analyzeInput(ctx context.Context, engine *pipeline.Engine, in io.Reader, path string, req pipeline.Request) (*contracts.Report, error) {
	if path == "-" {
		return engine.Analyze(ctx, in, req)
	}
	return engine.AnalyzeFile(ctx, path, req)
}

func sourceName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

// budgetFor applies the flag overrides to the configured digest budget.
func budgetFor(cfg config.DigestConfig, maxChars, maxTokens int) digest.Budget {
	b := digest.Budget{MaxChars: cfg.MaxChars, MaxTokens: cfg.MaxTokens}
	if maxChars > 0 {
		b.MaxChars = maxChars
	}
	if maxTokens > 0 {
		b.MaxTokens = maxTokens
	}
	return b
}

func writeReport(w io.Writer, report *contracts.Report, output string, budget digest.Budget, width int) error {
	switch output {
	case outputJSON:
		return writeJSON(w, report)
	case outputDigest:
		_, err := fmt.Fprintln(w, digest.Build(report, budget))
		return err
	}
	_, err := fmt.Fprintln(w, tui.RenderReport(report, width))
	return err
}

func writeMulti(w io.Writer, multi *pipeline.MultiReport, output string, budget digest.Budget, width int) error {
	if output == outputJSON {
		return writeJSON(w, multi)
	}

	for i, r := range multi.Reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := writeReport(w, r, output, budget, width); err != nil {
			return err
		}
	}
	for _, e := range multi.Errors {
		fmt.Fprintf(w, "! %s: %s\n", e.Source, firstLine(e.Error))
	}
	if len(multi.Reports) > 1 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Merged conclusion (%d logs)\n", len(multi.Reports))
		fmt.Fprintln(w, tui.RenderConclusion(multi.Conclusion, width, tui.DefaultStyles()))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
