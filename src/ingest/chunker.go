package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"diaglog/src/contracts"
)

// TargetChunkSize is the target size for each chunk (500KB).
const TargetChunkSize = 500 * 1024

// NewRequestID creates a unique request identifier.
// Format: req-YYYYMMDDTHHmmss-XXXXXXXX (compact UTC timestamp + 8 hex chars)
func NewRequestID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("req-%s-%s", timestamp, suffix)
}

// ChunkLog splits a log into ~500KB chunks on line boundaries. Chunks do not
// overlap; concatenating their contents in index order restores the input
// byte for byte. A single line longer than the target becomes its own chunk.
func ChunkLog(content, requestID, source, format string, metadata map[string]string) []contracts.LogChunk {
	if len(content) == 0 {
		return []contracts.LogChunk{}
	}

	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var (
		chunks    []contracts.LogChunk
		current   strings.Builder
		lineStart = 1
	)

	flush := func(lineEnd int) {
		chunks = append(chunks, contracts.LogChunk{
			RequestID:  requestID,
			Source:     source,
			Format:     format,
			ChunkIndex: len(chunks),
			Content:    current.String(),
			LineStart:  lineStart,
			LineEnd:    lineEnd,
			Metadata:   copyMetadata(metadata),
		})
		current.Reset()
		lineStart = lineEnd + 1
	}

	for i, line := range lines {
		if current.Len() > 0 && current.Len()+len(line) > TargetChunkSize {
			flush(i)
		}
		current.WriteString(line)
	}
	flush(len(lines))

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// Reassemble joins the chunks of one request. Chunks may arrive in any
// order; a missing, duplicate or foreign chunk is an error.
func Reassemble(chunks []contracts.LogChunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("no chunks to reassemble")
	}

	sorted := make([]contracts.LogChunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })

	first := sorted[0]
	if len(sorted) != first.TotalChunks {
		return "", fmt.Errorf("request %s: have %d of %d chunks", first.RequestID, len(sorted), first.TotalChunks)
	}

	var b strings.Builder
	for i, c := range sorted {
		if c.RequestID != first.RequestID {
			return "", fmt.Errorf("chunk %d belongs to request %s, not %s", c.ChunkIndex, c.RequestID, first.RequestID)
		}
		if c.ChunkIndex != i {
			return "", fmt.Errorf("request %s: chunk %d missing or duplicated", first.RequestID, i)
		}
		b.WriteString(c.Content)
	}
	return b.String(), nil
}

// copyMetadata creates a copy of the metadata map.
func copyMetadata(original map[string]string) map[string]string {
	if original == nil {
		return make(map[string]string)
	}
	copy := make(map[string]string, len(original))
	for k, v := range original {
		copy[k] = v
	}
	return copy
}

// FormatChunkInfo returns a human-readable summary of chunk information.
func FormatChunkInfo(chunk contracts.LogChunk) string {
	return fmt.Sprintf("Chunk %d/%d: lines %d-%d (%d bytes)",
		chunk.ChunkIndex+1,
		chunk.TotalChunks,
		chunk.LineStart,
		chunk.LineEnd,
		len(chunk.Content))
}
