// Package store provides an in-memory store implementation.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"diaglog/src/contracts"
)

// MemoryStore is an in-memory implementation of Store. Reports live for the
// process lifetime only.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*contracts.RequestStatus
	reports  map[string]*contracts.Report
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*contracts.RequestStatus),
		reports:  make(map[string]*contracts.Report),
	}
}

// CreateRequest creates a new analysis request record.
func (s *MemoryStore) CreateRequest(ctx context.Context, requestID string, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[requestID] = &contracts.RequestStatus{
		RequestID: requestID,
		Source:    source,
		Status:    StatusPending,
	}
	return nil
}

// GetRequestStatus returns the status of a request.
func (s *MemoryStore) GetRequestStatus(ctx context.Context, requestID string) (*contracts.RequestStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, exists := s.requests[requestID]
	if !exists {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	statusCopy := *status
	return &statusCopy, nil
}

// UpdateRequestStatus updates the status of a request. Unknown requests are
// created, since agents may see a request before its submitter records it.
func (s *MemoryStore) UpdateRequestStatus(ctx context.Context, status *contracts.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statusCopy := *status
	s.requests[status.RequestID] = &statusCopy
	return nil
}

// SaveReport stores a report and marks its request completed.
func (s *MemoryStore) SaveReport(ctx context.Context, report *contracts.Report) error {
	if report.RequestID == "" {
		return fmt.Errorf("report has no request id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := *report
	s.reports[r.RequestID] = &r

	status, ok := s.requests[r.RequestID]
	if !ok {
		status = &contracts.RequestStatus{RequestID: r.RequestID, Source: r.Source}
		s.requests[r.RequestID] = status
	}
	status.Status = StatusCompleted
	status.Error = ""
	return nil
}

// GetReport retrieves the report of a request.
func (s *MemoryStore) GetReport(ctx context.Context, requestID string) (*contracts.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[requestID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", requestID, ErrNotFound)
	}
	reportCopy := *r
	return &reportCopy, nil
}

// GetBucket retrieves one bucket of a stored report.
func (s *MemoryStore) GetBucket(ctx context.Context, requestID, bucketID string) (*contracts.ErrorBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[requestID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", requestID, ErrNotFound)
	}
	b, ok := r.FindBucket(bucketID)
	if !ok {
		return nil, fmt.Errorf("bucket %s in %s: %w", bucketID, requestID, ErrNotFound)
	}
	return &b, nil
}

// RequestIDs lists the request ids with a stored report, sorted.
func (s *MemoryStore) RequestIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
