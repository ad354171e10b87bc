// Package sanitize cleans raw service-tool output before ingestion.
// It detects the text encoding of a log, transcodes it to UTF-8, and removes
// terminal escape sequences that some tools write into their session logs.
package sanitize

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"diaglog/src/diagerr"
)

const (
	// sniffSize is how much of the input is inspected to pick an encoding.
	sniffSize = 8 * 1024

	// maxControlRatio is the share of control bytes above which content is
	// treated as binary.
	maxControlRatio = 0.10
)

// Encoding names reported by DecodeReader.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

// StripANSI removes ANSI escape sequences (colours, cursor movement, OSC).
func StripANSI(s string) string {
	if !containsEscape(s) {
		return s
	}
	return ansi.Strip(s)
}

func containsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b || s[i] == 0x9b {
			return true
		}
	}
	return false
}

// DecodeReader sniffs the start of r and returns a reader producing UTF-8.
// UTF-8 (with or without BOM) and BOM-marked UTF-16 are supported. Content
// that is not valid UTF-8 but looks like text is read as Windows-1252, the
// code page older service tools write. Binary content fails with
// *diagerr.EncodingError.
func DecodeReader(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("failed to read input: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}):
		if _, err := br.Discard(3); err != nil {
			return nil, "", fmt.Errorf("failed to read input: %w", err)
		}
		return br, EncodingUTF8BOM, nil
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16LE, nil
	case bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16BE, nil
	}

	if err := checkBinary(head); err != nil {
		return nil, "", err
	}

	if !utf8.Valid(trimPartialRune(head)) {
		return transform.NewReader(br, charmap.Windows1252.NewDecoder()), EncodingWindows1252, nil
	}

	return br, EncodingUTF8, nil
}

// checkBinary rejects NUL bytes and content dominated by control characters.
func checkBinary(head []byte) error {
	if len(head) == 0 {
		return nil
	}

	control := 0
	for i, b := range head {
		if b == 0 {
			return &diagerr.EncodingError{Reason: fmt.Sprintf("binary content (NUL byte at offset %d)", i)}
		}
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' && b != '\f' && b != '\v' && b != 0x1b {
			control++
		}
	}

	if float64(control)/float64(len(head)) > maxControlRatio {
		return &diagerr.EncodingError{Reason: fmt.Sprintf("binary content (%d control bytes in first %d)", control, len(head))}
	}
	return nil
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < 0x80 {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
