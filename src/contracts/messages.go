// Package contracts defines message types exchanged by the broker agents.
package contracts

// LogChunk is one slice of a submitted log.
// Published to: diaglog.logs.raw
// Key: {request_id}
type LogChunk struct {
	RequestID   string            `json:"request_id"`
	Source      string            `json:"source"`
	Format      string            `json:"format"`
	BestEffort  bool              `json:"best_effort,omitempty"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Content     string            `json:"content"`
	LineStart   int               `json:"line_start"` // First line number in this chunk
	LineEnd     int               `json:"line_end"`   // Last line number in this chunk
	Metadata    map[string]string `json:"metadata"`
}

// AssembledLog is a complete log rebuilt from its chunks.
// Published to: diaglog.logs.assembled
// Key: {request_id}
type AssembledLog struct {
	RequestID  string            `json:"request_id"`
	Source     string            `json:"source"`
	Format     string            `json:"format"`
	BestEffort bool              `json:"best_effort,omitempty"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Timestamp  string            `json:"timestamp"`
}

// RequestStatus represents the status of an analysis request.
type RequestStatus struct {
	RequestID     string `json:"request_id"`
	Source        string `json:"source"`
	Status        string `json:"status"` // pending, processing, completed, failed
	ChunksTotal   int    `json:"chunks_total"`
	ChunksArrived int    `json:"chunks_arrived"`
	Error         string `json:"error,omitempty"`
}

// Topic names used by the broker agents.
const (
	// TopicLogsRaw contains raw log chunks (~500KB each)
	TopicLogsRaw = "diaglog.logs.raw"

	// TopicLogsAssembled contains logs rebuilt from all their chunks
	TopicLogsAssembled = "diaglog.logs.assembled"

	// TopicReports contains finished analysis reports
	TopicReports = "diaglog.reports"
)
