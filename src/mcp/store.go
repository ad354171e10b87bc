package mcp

import (
	"context"

	"diaglog/src/contracts"
)

// ReportStore keeps analyzed reports for drill-down. It is satisfied by
// store.MemoryStore.
type ReportStore interface {
	// SaveReport saves a report under its request id.
	SaveReport(ctx context.Context, report *contracts.Report) error
	// GetReport retrieves the full report of a request.
	GetReport(ctx context.Context, requestID string) (*contracts.Report, error)
	// GetBucket retrieves a single bucket by id.
	GetBucket(ctx context.Context, requestID, bucketID string) (*contracts.ErrorBucket, error)
}
