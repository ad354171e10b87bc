package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"diaglog/src/analyze"
	"diaglog/src/config"
	"diaglog/src/contracts"
	"diaglog/src/ingest"
	"diaglog/src/logger"
	"diaglog/src/metadata"
	"diaglog/src/modules"
	"diaglog/src/patterns"
	"diaglog/src/ranking"
	"diaglog/src/reference"
	"diaglog/src/synthesis"
)

const tracerName = "diaglog/pipeline"

// Options tune an Engine.
type Options struct {
	Ingest     ingest.Options
	Modules    modules.Config
	MaxSamples int
	// Workers bounds AnalyzeMany concurrency.
	Workers int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Ingest:     ingest.DefaultOptions(),
		Modules:    modules.DefaultConfig(),
		MaxSamples: analyze.MaxSamples,
		Workers:    4,
	}
}

// OptionsFromConfig maps application configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Ingest.MaxLineBytes = cfg.Ingest.MaxLineBytes
	if len(cfg.Ingest.XMLKeywords) > 0 {
		opts.Ingest.XMLKeywords = cfg.Ingest.XMLKeywords
	}
	opts.Modules = modules.Config{
		Gateways:              cfg.Modules.Gateways,
		EdgeWindow:            cfg.Modules.EdgeWindow,
		IntermittentThreshold: cfg.Modules.IntermittentThreshold,
		IntermittentWindow:    cfg.Modules.IntermittentWindow,
	}
	opts.MaxSamples = cfg.MaxSamples
	opts.Workers = cfg.Workers
	return opts
}

// Engine runs the analysis pipeline. It holds only immutable state after New
// and is safe for concurrent use; every Analyze call keeps its own state.
type Engine struct {
	refs       *reference.Tables
	opts       Options
	extractor  *patterns.Extractor
	classifier *analyze.Classifier
	log        logger.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the clock used for Report.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine over refs.
func New(refs *reference.Tables, opts Options, options ...Option) *Engine {
	e := &Engine{
		refs:       refs,
		opts:       opts,
		extractor:  patterns.NewExtractor(refs),
		classifier: analyze.NewClassifier(refs),
		log:        logger.NewSilentLogger(),
		now:        time.Now,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// References returns the reference tables the engine was built with.
func (e *Engine) References() *reference.Tables {
	return e.refs
}

// Request describes one analysis run.
type Request struct {
	RequestID string
	Source    string
	Format    ingest.Format
	// BestEffort returns the partial report alongside a cancellation or
	// mid-stream input error instead of nil.
	BestEffort bool
}

// Analyze ingests r and produces a report. The context is checked between
// records. On cancellation the context error is returned; with BestEffort
// the report built so far is returned with Partial set.
func (e *Engine) Analyze(ctx context.Context, r io.Reader, req Request) (*contracts.Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.analyze",
		trace.WithAttributes(
			attribute.String("diaglog.source", req.Source),
			attribute.String("diaglog.format", string(req.Format)),
		))
	defer span.End()

	report, err := e.analyze(ctx, r, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if report != nil {
		span.SetAttributes(
			attribute.Int("diaglog.records", report.Stats.Records),
			attribute.Int("diaglog.buckets", len(report.Buckets)),
			attribute.String("diaglog.risk", string(report.Conclusion.RiskLevel)),
		)
	}
	return report, err
}

func (e *Engine) analyze(ctx context.Context, r io.Reader, req Request) (*contracts.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := ingest.Open(r, req.Format, e.opts.Ingest)
	if err != nil {
		return nil, err
	}

	run := e.newRun()
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.records")
	for {
		if err := ctx.Err(); err != nil {
			span.End()
			return e.abort(ctx, run, req, src.Format(), err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.End()
			return e.abort(ctx, run, req, src.Format(), err)
		}
		run.observe(rec)
	}
	span.End()

	e.log.Debug("[Engine] %s: %d records, %d matched", req.Source, run.buckets.Stats().Records, run.buckets.Stats().Matched)
	return e.finish(ctx, run, req, src.Format()), nil
}

func (e *Engine) abort(ctx context.Context, run *run, req Request, format ingest.Format, err error) (*contracts.Report, error) {
	if !req.BestEffort {
		return nil, err
	}
	e.log.Info("[Engine] %s: returning partial report after %d records: %v", req.Source, run.buckets.Stats().Records, err)
	report := e.finish(context.WithoutCancel(ctx), run, req, format)
	report.Partial = true
	return report, err
}

// run is the mutable state of one Analyze call.
type run struct {
	extractor  *patterns.Extractor
	classifier *analyze.Classifier
	buckets    *analyze.BucketSet
	modules    *modules.Table
	metadata   *metadata.Collector
}

func (e *Engine) newRun() *run {
	return &run{
		extractor:  e.extractor,
		classifier: e.classifier,
		buckets:    analyze.NewBucketSet(e.opts.MaxSamples),
		modules:    modules.NewTable(e.refs, e.opts.Modules),
		metadata:   metadata.NewCollector(),
	}
}

func (r *run) observe(rec contracts.LogRecord) {
	matches := r.extractor.Extract(rec)
	r.buckets.Add(rec, matches, r.classifier.Classify(rec, matches))
	r.modules.Update(rec, matches)
	r.metadata.Observe(rec, matches)
}

func (e *Engine) finish(ctx context.Context, run *run, req Request, format ingest.Format) *contracts.Report {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.synthesize")
	defer span.End()

	table := run.modules.Finalize()
	buckets := metadata.ResolveCritical(run.buckets.Buckets(), table)
	md := run.metadata.Finish(buckets)
	conclusion := synthesis.Synthesize(buckets, table, md)

	var deps map[string][]string
	for addr, m := range table.Modules {
		if len(m.InferredMissingDependencies) == 0 {
			continue
		}
		if deps == nil {
			deps = make(map[string][]string)
		}
		deps[addr] = append([]string(nil), m.InferredMissingDependencies...)
	}

	return &contracts.Report{
		RequestID:    req.RequestID,
		Source:       req.Source,
		Format:       string(format),
		Stats:        run.buckets.Stats(),
		Metadata:     md,
		Buckets:      ranking.RankBuckets(buckets),
		Modules:      table,
		Dependencies: deps,
		Conclusion:   conclusion,
		GeneratedAt:  e.now().UTC().Format(time.RFC3339),
	}
}

// AnalyzeString analyses in-memory content.
func (e *Engine) AnalyzeString(ctx context.Context, content string, req Request) (*contracts.Report, error) {
	return e.Analyze(ctx, strings.NewReader(content), req)
}

// AnalyzeFile analyses the file at path. An empty Source defaults to the
// file's base name.
func (e *Engine) AnalyzeFile(ctx context.Context, path string, req Request) (*contracts.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	if req.Source == "" {
		req.Source = filepath.Base(path)
	}
	return e.Analyze(ctx, f, req)
}

// AnalyzeAssembled analyses a log rebuilt by the ingest agent.
func (e *Engine) AnalyzeAssembled(ctx context.Context, log contracts.AssembledLog) (*contracts.Report, error) {
	format, err := ingest.ParseFormat(log.Format)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeString(ctx, log.Content, Request{
		RequestID:  log.RequestID,
		Source:     log.Source,
		Format:     format,
		BestEffort: log.BestEffort,
	})
}
