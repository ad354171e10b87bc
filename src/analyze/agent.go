package analyze

import (
	"context"
	"encoding/json"
	"fmt"

	"diaglog/src/broker"
	"diaglog/src/contracts"
	"diaglog/src/logger"
	"diaglog/src/store"
)

// LogAnalyzer turns an assembled log into a report.
type LogAnalyzer interface {
	AnalyzeAssembled(ctx context.Context, log contracts.AssembledLog) (*contracts.Report, error)
}

// Agent consumes assembled logs and publishes analysis reports.
type Agent struct {
	broker   broker.Broker
	analyzer LogAnalyzer
	store    store.Store
	logger   logger.Logger
}

// NewAgent creates a new analyze agent. The store may be nil.
func NewAgent(brk broker.Broker, analyzer LogAnalyzer, st store.Store, log logger.Logger) *Agent {
	return &Agent{
		broker:   brk,
		analyzer: analyzer,
		store:    st,
		logger:   log,
	}
}

// Run starts the agent's main loop.
// It subscribes to diaglog.logs.assembled and analyses incoming logs.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[AnalyzeAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicLogsAssembled, "diaglog-analyze")
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicLogsAssembled, err)
	}

	a.logger.Info("[AnalyzeAgent] Listening for logs on '%s' topic...", contracts.TopicLogsAssembled)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[AnalyzeAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processLog(ctx, msg); err != nil {
				a.logger.Error("[AnalyzeAgent] Error processing log: %v", err)
			}

		case <-ctx.Done():
			a.logger.Info("[AnalyzeAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

// processLog analyses one assembled log, stores the report and publishes it.
func (a *Agent) processLog(ctx context.Context, msg broker.Message) error {
	var log contracts.AssembledLog
	if err := json.Unmarshal(msg.Value, &log); err != nil {
		return fmt.Errorf("failed to unmarshal assembled log: %w", err)
	}

	a.logger.Debug("[AnalyzeAgent] Analysing %s (%s, %d bytes)", log.RequestID, log.Source, len(log.Content))

	report, err := a.analyzer.AnalyzeAssembled(ctx, log)
	if err != nil && report == nil {
		a.markFailed(ctx, log, err)
		return fmt.Errorf("analysis of %s failed: %w", log.RequestID, err)
	}
	if err != nil {
		a.logger.Error("[AnalyzeAgent] %s: partial report: %v", log.RequestID, err)
	}

	if a.store != nil {
		if err := a.store.SaveReport(ctx, report); err != nil {
			a.logger.Error("[AnalyzeAgent] Failed to store report %s: %v", log.RequestID, err)
		}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := a.broker.Publish(ctx, contracts.TopicReports, log.RequestID, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	a.logger.Info("[AnalyzeAgent] Report %s: %d buckets, risk %s (confidence %.2f)",
		log.RequestID, len(report.Buckets), report.Conclusion.RiskLevel, report.Conclusion.Confidence)
	return nil
}

func (a *Agent) markFailed(ctx context.Context, log contracts.AssembledLog, cause error) {
	if a.store == nil {
		return
	}
	err := a.store.UpdateRequestStatus(ctx, &contracts.RequestStatus{
		RequestID: log.RequestID,
		Source:    log.Source,
		Status:    store.StatusFailed,
		Error:     cause.Error(),
	})
	if err != nil {
		a.logger.Error("[AnalyzeAgent] Failed to update status of %s: %v", log.RequestID, err)
	}
}
