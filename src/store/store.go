// Package store defines the interface for report and request-status storage.
package store

import (
	"context"
	"errors"

	"diaglog/src/contracts"
)

// ErrNotFound is returned for unknown request or bucket ids.
var ErrNotFound = errors.New("not found")

// Request statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Store defines the interface for persisting reports and request status.
type Store interface {
	// CreateRequest creates a new analysis request record
	CreateRequest(ctx context.Context, requestID string, source string) error

	// GetRequestStatus returns the status of a request
	GetRequestStatus(ctx context.Context, requestID string) (*contracts.RequestStatus, error)

	// UpdateRequestStatus updates the status of a request
	UpdateRequestStatus(ctx context.Context, status *contracts.RequestStatus) error

	// SaveReport stores a finished report and marks its request completed
	SaveReport(ctx context.Context, report *contracts.Report) error

	// GetReport retrieves the report of a request
	GetReport(ctx context.Context, requestID string) (*contracts.Report, error)

	// GetBucket retrieves one bucket of a stored report
	GetBucket(ctx context.Context, requestID, bucketID string) (*contracts.ErrorBucket, error)

	// Close releases the store
	Close() error
}
