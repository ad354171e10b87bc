package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/contracts"
	"diaglog/src/reference"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	refs, err := reference.Default()
	require.NoError(t, err)
	return NewExtractor(refs)
}

func extract(e *Extractor, line string) []contracts.PatternMatch {
	return e.Extract(contracts.LogRecord{LineNumber: 1, RawText: line})
}

func values(matches []contracts.PatternMatch, kind contracts.MatchKind) []string {
	var out []string
	for _, m := range MatchesOfKind(matches, kind) {
		out = append(out, m.Value)
	}
	return out
}

func TestExtract_VIN(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "VIN: 1FTFW1RG3NFA95916")
	vins := MatchesOfKind(matches, contracts.MatchVIN)
	require.Len(t, vins, 1)
	assert.Equal(t, "1FTFW1RG3NFA95916", vins[0].Value)
	assert.Equal(t, contracts.Span{Start: 5, End: 22}, vins[0].Span)
	assert.Equal(t, 1, vins[0].Line)
}

func TestExtract_AllHexVINNeedsKeyword(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "payload 1234567890ABCDEF1")
	assert.Empty(t, values(matches, contracts.MatchVIN))
	assert.Equal(t, []string{"1234567890ABCDEF1"}, values(matches, contracts.MatchHex))

	matches = extract(e, "VIN 1234567890ABCDEF1")
	assert.Equal(t, []string{"1234567890ABCDEF1"}, values(matches, contracts.MatchVIN))
}

func TestExtract_HexMinimumLength(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"short prefixed value", "CRC 0x1A2B", nil},
		{"digits only", "Counter 12345678", nil},
		{"prefixed digits", "Seed 0x00000000", []string{"00000000"}},
		{"bare hex with letters", "Checksum deadbeef01", []string{"DEADBEEF01"}},
		{"separated bytes", "Rx 02 10 03 AA BB", []string{"021003AABB"}},
		{"three bytes too short", "Tx 22 F1 90", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, values(extract(e, tt.line), contracts.MatchHex))
		})
	}
}

func TestExtract_TimestampIsNotHex(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "2024-05-21 10:00:05.123 Session started")
	assert.Empty(t, matches)
}

func TestExtract_NRCForms(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"token with prefix", "Module 7E0 returned NRC 0x78", []string{"78"}},
		{"token with colon", "NRC: 33 securityAccessDenied", []string{"33"}},
		{"phrase", "Negative response code: 22", []string{"22"}},
		{"phrase without code", "Negative response 0x31 from PCM", []string{"31"}},
		{"response frame", "Rx 7E8: 03 7F 31 78", []string{"78"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, values(extract(e, tt.line), contracts.MatchNRC))
		})
	}
}

func TestExtract_ResponseAddressFoldsToRequest(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "Rx 7E8: 03 7F 31 78")
	addrs := MatchesOfKind(matches, contracts.MatchECUAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "7E0", addrs[0].Value)
	assert.Equal(t, contracts.CategoryCritical, addrs[0].Category)
	assert.Equal(t, contracts.Span{Start: 3, End: 6}, addrs[0].Span)
}

func TestExtract_UnknownAddressKept(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "ECU 7A3 did not respond")
	addrs := MatchesOfKind(matches, contracts.MatchECUAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "7A3", addrs[0].Value)
	assert.Equal(t, contracts.CategoryUnknown, addrs[0].Category)

	// Without address context an unknown token is ordinary text.
	assert.Empty(t, values(extract(e, "Step ABC done"), contracts.MatchECUAddress))
}

func TestExtract_DecimalLookingTokenNeedsAddressContext(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"block counter", "Block 768 checksum verification failed, retrying", nil},
		{"byte count", "Downloaded 716 of 2048 blocks", nil},
		{"module keyword", "Module 768 did not respond", []string{"760"}},
		{"gateway keyword", "Routing via gateway 716", []string{"716"}},
		{"frame payload", "768: 03 7F 22 31", []string{"760"}},
		{"hex letter", "Reprogramming 7E0 started", []string{"7E0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, values(extract(e, tt.line), contracts.MatchECUAddress))
		})
	}
}

func TestExtract_DID(t *testing.T) {
	e := newTestExtractor(t)

	assert.Equal(t, []string{"F190"}, values(extract(e, "Read DID F190"), contracts.MatchDID))
	assert.Equal(t, []string{"F188"}, values(extract(e, "DID=0xf188"), contracts.MatchDID))
}

func TestExtract_Version(t *testing.T) {
	e := newTestExtractor(t)

	assert.Equal(t, []string{"45.3.1"}, values(extract(e, "FDRS 45.3.1 started"), contracts.MatchVersion))
	assert.Equal(t, []string{"2.1.0"}, values(extract(e, "Software version: 2.1.0"), contracts.MatchVersion))
	assert.Empty(t, values(extract(e, "Step 3 of 5"), contracts.MatchVersion))
}

func TestExtract_BlankLine(t *testing.T) {
	e := newTestExtractor(t)
	assert.Nil(t, extract(e, "   "))
}

func TestExtract_LineCarriesSeveralKinds(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "ECU 7E0 DID F190 NRC 0x31")
	assert.Equal(t, []string{"7E0"}, values(matches, contracts.MatchECUAddress))
	assert.Equal(t, []string{"F190"}, values(matches, contracts.MatchDID))
	assert.Equal(t, []string{"31"}, values(matches, contracts.MatchNRC))
}

func TestAddresses(t *testing.T) {
	e := newTestExtractor(t)

	matches := extract(e, "Tx 7E0 via 716, Rx 7E8")
	assert.Equal(t, []string{"7E0", "716"}, Addresses(matches))
}

func TestOutcomeVocabulary(t *testing.T) {
	tests := []struct {
		line    string
		fatal   bool
		failure bool
	}{
		{"Checking critical DTCs: none stored", false, false},
		{"Critical error while erasing flash", true, true},
		{"FATAL: ECU bricked", true, false},
		{"Self test completed with 0 errors", false, false},
		{"Validation passed, no errors", false, false},
		{"errors: 0, warnings: 2", false, false},
		{"2 errors reported by BCM", false, true},
		{"No errors before step 4, then programming failed", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.fatal, HasFatalWords(tt.line))
			assert.Equal(t, tt.failure, HasFailureWords(tt.line))
		})
	}
}
