package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/diagerr"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{" TEXT ", FormatText, false},
		{"xml", FormatXML, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Text(t *testing.T) {
	content := "2026-03-01 10:00:00 FDRS version 45.3.1 starting\r\n" +
		"\x1b[31mModule 726 did not respond\x1b[0m\r\n" +
		"\n" +
		"2026-03-01T10:00:05.250Z Session failed"

	records, err := Parse(content, FormatText, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, 1, records[0].LineNumber)
	assert.Equal(t, "2026-03-01 10:00:00 FDRS version 45.3.1 starting", records[0].RawText)
	require.NotNil(t, records[0].Timestamp)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), *records[0].Timestamp)

	assert.Equal(t, "Module 726 did not respond", records[1].RawText)
	assert.Nil(t, records[1].Timestamp)

	assert.Equal(t, 3, records[2].LineNumber)
	assert.Empty(t, records[2].RawText)

	require.NotNil(t, records[3].Timestamp)
	assert.Equal(t, 250*time.Millisecond, time.Duration(records[3].Timestamp.Nanosecond()))
}

func TestParse_TextTruncatesLongLines(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLineBytes = 10

	records, err := Parse("0123456789ABCDEF\nnext\n", FormatText, opts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0123456789", records[0].RawText)
	assert.Equal(t, "next", records[1].RawText)
	assert.Equal(t, 2, records[1].LineNumber)
}

const sessionXML = `<?xml version="1.0" encoding="utf-8"?>
<Session vin="1FTFW1RG3NFA95916">
  <Procedure>PCM Reprogramming</Procedure>
  <Response ecu="7E0" time="2026-03-01T10:00:01Z">NRC=78 responsePending</Response>
  <Note>irrelevant</Note>
  <Result status="success">Programming session completed successfully</Result>
</Session>
`

func TestParse_XML(t *testing.T) {
	records, err := Parse(sessionXML, FormatAuto, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 4)

	session := records[0]
	assert.Equal(t, 2, session.LineNumber)
	assert.Equal(t, []string{"Session"}, session.TagPath)
	assert.Equal(t, "vin=1FTFW1RG3NFA95916", session.RawText)
	assert.Equal(t, map[string]string{"vin": "1FTFW1RG3NFA95916"}, session.Attributes)

	assert.Equal(t, []string{"Session", "Procedure"}, records[1].TagPath)
	assert.Equal(t, "PCM Reprogramming", records[1].RawText)

	resp := records[2]
	assert.Equal(t, 4, resp.LineNumber)
	assert.Equal(t, "ecu=7E0 time=2026-03-01T10:00:01Z NRC=78 responsePending", resp.RawText)
	require.NotNil(t, resp.Timestamp)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC), resp.Timestamp.UTC())

	assert.Equal(t, 6, records[3].LineNumber)
	assert.Equal(t, "status=success Programming session completed successfully", records[3].RawText)
}

func TestParse_XMLWithoutKeywordsKeepsEveryElement(t *testing.T) {
	opts := DefaultOptions()
	opts.XMLKeywords = nil

	records, err := Parse(sessionXML, FormatXML, opts)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestParse_MalformedXML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"mismatched end tag", "<Session>\n  <Step>Programming failed\n</Session>\n", 3},
		{"unclosed root", "<Session>\n  <Step>ok</Step>\n", 0},
		{"no root", "   \n", 0},
		{"text outside root", "<Session/>\ntrailing text\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content, FormatXML, DefaultOptions())
			require.Error(t, err)

			var malformed *diagerr.MalformedInputError
			require.True(t, errors.As(err, &malformed), "got %T: %v", err, err)
			assert.Equal(t, "xml", malformed.Format)
			assert.True(t, errors.Is(err, diagerr.ErrMalformedInput))
			if tt.line > 0 {
				assert.Equal(t, tt.line, malformed.Line)
			}
		})
	}
}

func TestParse_MalformedXMLAsText(t *testing.T) {
	records, err := Parse("<Session>\n  <Step>Programming failed\n</Session>\n", FormatText, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestOpen_SniffsFormat(t *testing.T) {
	src, err := Open(strings.NewReader("\n  <Result status=\"ok\"/>"), FormatAuto, Options{})
	require.NoError(t, err)
	assert.Equal(t, FormatXML, src.Format())

	src, err = Open(strings.NewReader("Session failed"), "", Options{})
	require.NoError(t, err)
	assert.Equal(t, FormatText, src.Format())

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "Session failed", rec.RawText)
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpen_RejectsBinary(t *testing.T) {
	binary := strings.Repeat(string([]byte{0x00, 0x01, 0x02, 0x00, 0xff}), 64)
	_, err := Open(strings.NewReader(binary), FormatAuto, DefaultOptions())
	assert.ErrorIs(t, err, diagerr.ErrEncoding)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"2026-03-01 10:00:00 FDRS starting", ptr(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))},
		{"[2026-03-01T10:00:00Z] Rx 7E8", ptr(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))},
		{"Module 726 did not respond", nil},
		{"2026-13-45 99:00:00 garbage", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTimestamp(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
