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

// textSource emits one record per line.
type textSource struct {
	r        *bufio.Reader
	encoding string
	max      int
	line     int
	done     bool
}

func newTextSource(r *bufio.Reader, encoding string, opts Options) *textSource {
	return &textSource{r: r, encoding: encoding, max: opts.MaxLineBytes}
}

func (s *textSource) Format() Format   { return FormatText }
func (s *textSource) Encoding() string { return s.encoding }

func (s *textSource) Next() (contracts.LogRecord, error) {
	if s.done {
		return contracts.LogRecord{}, io.EOF
	}

	raw, err := s.readLine()
	if err != nil {
		s.done = true
		return contracts.LogRecord{}, err
	}

	s.line++
	text := sanitize.StripANSI(raw)
	return contracts.LogRecord{
		LineNumber: s.line,
		Timestamp:  ParseTimestamp(text),
		RawText:    text,
	}, nil
}

// readLine returns the next line without its terminator, truncated to the
// configured maximum.
func (s *textSource) readLine() (string, error) {
	var buf []byte
	read := false
	for {
		chunk, err := s.r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if room := s.max - len(buf); room > 0 {
				if len(chunk) > room {
					chunk = chunk[:room]
				}
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if !read {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read line %d: %w", s.line+1, err)
		}
		break
	}

	line := strings.TrimRight(string(buf), "\r\n")
	return strings.ToValidUTF8(line, ""), nil
}
