// Package pipeline runs the diagnostic log analysis: the in-process Engine,
// parallel multi-log analysis, and the broker-based submission pipeline used
// by the CLI and the agents.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"diaglog/src/analyze"
	"diaglog/src/broker"
	"diaglog/src/config"
	"diaglog/src/contracts"
	"diaglog/src/ingest"
	"diaglog/src/logger"
	"diaglog/src/store"
)

// Start starts the ingest and analyze agents as goroutines. They stop when
// ctx is cancelled.
func Start(ctx context.Context, brk broker.Broker, engine *Engine, st store.Store, log logger.Logger) {
	ingestAgent := ingest.NewAgent(brk, st, log)
	go func() {
		if err := ingestAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// Error logging always goes to stderr even in silent mode
			fmt.Fprintf(os.Stderr, "[Pipeline] Ingest agent error: %v\n", err)
		}
	}()

	analyzeAgent := analyze.NewAgent(brk, engine, st, log)
	go func() {
		if err := analyzeAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "[Pipeline] Analyze agent error: %v\n", err)
		}
	}()
}

// Mode selects where the agents run.
type Mode int

const (
	// LocalMode runs the agents in-process over the in-memory broker.
	LocalMode Mode = iota
	// DistributedMode publishes to Redpanda; agents run under `diaglog serve`.
	DistributedMode
)

func (m Mode) String() string {
	if m == DistributedMode {
		return "distributed"
	}
	return "local"
}

// DetectMode picks the mode from the configured broker.
func DetectMode(cfg *config.Config) Mode {
	if cfg.Broker.Type == config.BrokerRedpanda && len(cfg.Broker.Brokers) > 0 {
		return DistributedMode
	}
	return LocalMode
}

// Pipeline submits logs through a broker and collects their reports.
type Pipeline struct {
	broker broker.Broker
	store  store.Store
	log    logger.Logger
	stop   context.CancelFunc
}

// Open creates the pipeline for the configured mode.
func Open(cfg *config.Config, engine *Engine, log logger.Logger) (*Pipeline, error) {
	switch DetectMode(cfg) {
	case DistributedMode:
		return NewDistributed(cfg, log)
	default:
		return NewLocal(engine, log), nil
	}
}

// SubmitRequest describes a log to submit.
type SubmitRequest struct {
	Source     string
	Format     ingest.Format
	BestEffort bool
	Content    string
	Metadata   map[string]string
}

// Submit chunks the log, publishes the chunks and returns the request id.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	requestID := ingest.NewRequestID()
	format := req.Format
	if format == "" {
		format = ingest.FormatAuto
	}

	if err := p.store.CreateRequest(ctx, requestID, req.Source); err != nil {
		return "", fmt.Errorf("failed to create request record: %w", err)
	}

	chunks := ingest.ChunkLog(req.Content, requestID, req.Source, string(format), req.Metadata)
	for _, chunk := range chunks {
		chunk.BestEffort = req.BestEffort
		data, err := json.Marshal(chunk)
		if err != nil {
			return "", fmt.Errorf("failed to marshal chunk: %w", err)
		}
		if err := p.broker.Publish(ctx, contracts.TopicLogsRaw, requestID, data); err != nil {
			return "", fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.log.Info("[Pipeline] Submitted %s (%s) in %d chunks", requestID, req.Source, len(chunks))
	return requestID, nil
}

// Status returns the status of a request known to this pipeline.
func (p *Pipeline) Status(ctx context.Context, requestID string) (*contracts.RequestStatus, error) {
	return p.store.GetRequestStatus(ctx, requestID)
}

// Wait blocks until the report of requestID is published or ctx is done.
func (p *Pipeline) Wait(ctx context.Context, requestID string) (*contracts.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgChan, err := p.broker.Subscribe(ctx, contracts.TopicReports, "diaglog-wait-"+requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reports: %w", err)
	}

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("report stream closed before %s arrived", requestID)
			}
			if msg.Key != requestID {
				continue
			}
			var report contracts.Report
			if err := json.Unmarshal(msg.Value, &report); err != nil {
				return nil, fmt.Errorf("failed to unmarshal report: %w", err)
			}
			return &report, nil

		case <-ctx.Done():
			if status, err := p.store.GetRequestStatus(context.WithoutCancel(ctx), requestID); err == nil && status.Status == store.StatusFailed {
				return nil, fmt.Errorf("request %s failed: %s", requestID, status.Error)
			}
			return nil, ctx.Err()
		}
	}
}

// Store exposes the pipeline's request and report store.
func (p *Pipeline) Store() store.Store {
	return p.store
}

// Close stops local agents and shuts down the broker.
func (p *Pipeline) Close() error {
	if p.stop != nil {
		p.stop()
	}
	if err := p.broker.Close(); err != nil {
		return err
	}
	return p.store.Close()
}
