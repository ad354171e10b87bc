package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"diaglog/src/broker"
	"diaglog/src/contracts"
	"diaglog/src/logger"
	"diaglog/src/store"
)

// DefaultPendingTTL drops partially received logs that stop receiving chunks.
const DefaultPendingTTL = 10 * time.Minute

// Agent consumes log chunks and publishes each log once all of its chunks
// have arrived.
type Agent struct {
	broker  broker.Broker
	store   store.Store
	logger  logger.Logger
	ttl     time.Duration
	now     func() time.Time
	pending map[string]*pendingLog
}

type pendingLog struct {
	chunks   []contracts.LogChunk
	seen     map[int]bool
	lastSeen time.Time
}

// NewAgent creates a new ingest agent. The store receives request status
// updates and may be nil.
func NewAgent(brk broker.Broker, st store.Store, log logger.Logger) *Agent {
	return &Agent{
		broker:  brk,
		store:   st,
		logger:  log,
		ttl:     DefaultPendingTTL,
		now:     time.Now,
		pending: make(map[string]*pendingLog),
	}
}

// Run starts the agent's main loop.
// It subscribes to diaglog.logs.raw and reassembles incoming chunks.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[IngestAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicLogsRaw, "diaglog-ingest")
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicLogsRaw, err)
	}

	a.logger.Info("[IngestAgent] Listening for log chunks on '%s' topic...", contracts.TopicLogsRaw)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[IngestAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processChunk(ctx, msg); err != nil {
				a.logger.Error("[IngestAgent] Error processing chunk: %v", err)
			}

		case <-ctx.Done():
			a.logger.Info("[IngestAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

// processChunk buffers one chunk and publishes the assembled log when it
// completes its request.
func (a *Agent) processChunk(ctx context.Context, msg broker.Message) error {
	var chunk contracts.LogChunk
	if err := json.Unmarshal(msg.Value, &chunk); err != nil {
		return fmt.Errorf("failed to unmarshal chunk: %w", err)
	}
	if chunk.RequestID == "" || chunk.TotalChunks <= 0 {
		return fmt.Errorf("chunk without request id or total")
	}

	a.evictStale()

	p, ok := a.pending[chunk.RequestID]
	if !ok {
		p = &pendingLog{seen: make(map[int]bool)}
		a.pending[chunk.RequestID] = p
	}
	p.lastSeen = a.now()

	if p.seen[chunk.ChunkIndex] {
		a.logger.Debug("[IngestAgent] Duplicate chunk %d for %s ignored", chunk.ChunkIndex, chunk.RequestID)
		return nil
	}
	p.seen[chunk.ChunkIndex] = true
	p.chunks = append(p.chunks, chunk)

	a.logger.Debug("[IngestAgent] Received %s", FormatChunkInfo(chunk))
	a.updateStatus(ctx, chunk, len(p.chunks), store.StatusPending, "")

	if len(p.chunks) < chunk.TotalChunks {
		return nil
	}
	delete(a.pending, chunk.RequestID)

	content, err := Reassemble(p.chunks)
	if err != nil {
		a.updateStatus(ctx, chunk, len(p.chunks), store.StatusFailed, err.Error())
		return fmt.Errorf("failed to reassemble %s: %w", chunk.RequestID, err)
	}

	assembled := contracts.AssembledLog{
		RequestID:  chunk.RequestID,
		Source:     chunk.Source,
		Format:     chunk.Format,
		BestEffort: chunk.BestEffort,
		Content:    content,
		Metadata:   copyMetadata(chunk.Metadata),
		Timestamp:  a.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(assembled)
	if err != nil {
		return fmt.Errorf("failed to marshal assembled log: %w", err)
	}

	a.updateStatus(ctx, chunk, len(p.chunks), store.StatusProcessing, "")
	if err := a.broker.Publish(ctx, contracts.TopicLogsAssembled, chunk.RequestID, data); err != nil {
		return fmt.Errorf("failed to publish assembled log: %w", err)
	}

	a.logger.Info("[IngestAgent] Assembled %s from %d chunks (%d bytes)",
		chunk.RequestID, chunk.TotalChunks, len(content))
	return nil
}

func (a *Agent) evictStale() {
	cutoff := a.now().Add(-a.ttl)
	for id, p := range a.pending {
		if p.lastSeen.Before(cutoff) {
			a.logger.Error("[IngestAgent] Dropping %s: %d chunks arrived before timeout", id, len(p.chunks))
			delete(a.pending, id)
		}
	}
}

func (a *Agent) updateStatus(ctx context.Context, chunk contracts.LogChunk, arrived int, status, errMsg string) {
	if a.store == nil {
		return
	}
	err := a.store.UpdateRequestStatus(ctx, &contracts.RequestStatus{
		RequestID:     chunk.RequestID,
		Source:        chunk.Source,
		Status:        status,
		ChunksTotal:   chunk.TotalChunks,
		ChunksArrived: arrived,
		Error:         errMsg,
	})
	if err != nil {
		a.logger.Error("[IngestAgent] Failed to update status of %s: %v", chunk.RequestID, err)
	}
}
