// Package ingest turns raw service-tool logs into an ordered stream of
// LogRecords, and splits and reassembles logs for the broker agents.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"diaglog/src/contracts"
	"diaglog/src/sanitize"
)

// Format is the declared layout of a log.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatXML  Format = "xml"
)

// DefaultMaxLineBytes is the longest text line kept; the rest is dropped.
const DefaultMaxLineBytes = 64 * 1024

// DefaultXMLKeywords select which XML elements become records.
var DefaultXMLKeywords = []string{
	"error", "fail", "exception", "nrc", "negative", "timeout", "timed out",
	"success", "complete", "pass", "result", "status", "warning",
	"vin", "version", "procedure", "ecu", "module", "target", "session",
	"programming", "security", "catalog", "validation", "response",
}

// ParseFormat validates a format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatText, FormatXML:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want auto, text or xml)", s)
}

// Options tune ingestion.
type Options struct {
	// MaxLineBytes truncates longer text lines.
	MaxLineBytes int
	// XMLKeywords filters XML elements: an element becomes a record when its
	// tag, attributes or own text contain one of them. Empty keeps every
	// element that carries text or attributes.
	XMLKeywords []string
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{
		MaxLineBytes: DefaultMaxLineBytes,
		XMLKeywords:  append([]string(nil), DefaultXMLKeywords...),
	}
}

// Source is a stream of records in document order.
type Source interface {
	// Next returns the next record, or io.EOF after the last one.
	Next() (contracts.LogRecord, error)
	// Format is the resolved format, never FormatAuto.
	Format() Format
	// Encoding is the detected input encoding.
	Encoding() string
}

// Open decodes r and returns a record stream. Binary content fails with
// *diagerr.EncodingError. Malformed XML is reported by Next as
// *diagerr.MalformedInputError.
func Open(r io.Reader, format Format, opts Options) (Source, error) {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}

	decoded, encoding, err := sanitize.DecodeReader(r)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(decoded, 64*1024)

	if format == FormatAuto || format == "" {
		format = sniff(br)
	}

	switch format {
	case FormatXML:
		return newXMLSource(br, encoding, opts), nil
	case FormatText:
		return newTextSource(br, encoding, opts), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// sniff picks XML when the first non-whitespace character is '<'.
func sniff(br *bufio.Reader) Format {
	head, _ := br.Peek(4096)
	s := strings.TrimLeft(string(head), " \t\r\n\ufeff")
	if strings.HasPrefix(s, "<") {
		return FormatXML
	}
	return FormatText
}

// Parse reads all records of content.
func Parse(content string, format Format, opts Options) ([]contracts.LogRecord, error) {
	src, err := Open(strings.NewReader(content), format, opts)
	if err != nil {
		return nil, err
	}
	return ReadAll(src)
}

// ReadAll drains src.
func ReadAll(src Source) ([]contracts.LogRecord, error) {
	var records []contracts.LogRecord
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
