package hexnrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/reference"
)

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	return NewDecoder(reference.MustDefault())
}

func fieldNames(g FrameGuess) []string {
	names := make([]string, len(g.Fields))
	for i, f := range g.Fields {
		names[i] = f.Name
	}
	return names
}

func field(t *testing.T, g FrameGuess, name string) Field {
	t.Helper()
	for _, f := range g.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not found in %v", name, fieldNames(g))
	return Field{}
}

func TestDecodeHexBytes(t *testing.T) {
	for _, input := range []string{"0x7F 0x31 0x78", "7F:31:78", "7f-31-78", "7F,31,78", "7F3178"} {
		t.Run(input, func(t *testing.T) {
			got, err := DecodeHexBytes(input)
			require.NoError(t, err)
			require.Len(t, got, 3)

			assert.Equal(t, byte(0x7F), got[0].Byte)
			assert.Equal(t, "7F", got[0].Hex)
			assert.Equal(t, 127, got[0].Decimal)
			assert.Nil(t, got[0].ASCII, "DEL is not printable")

			require.NotNil(t, got[1].ASCII)
			assert.Equal(t, "1", *got[1].ASCII)
			require.NotNil(t, got[2].ASCII)
			assert.Equal(t, "x", *got[2].ASCII)
		})
	}
}

func TestDecodeHexBytesInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"odd length", "7F3"},
		{"non hex", "ZZ"},
		{"empty", ""},
		{"separators only", " : - "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHexBytes(tt.input)
			assert.ErrorIs(t, err, ErrInvalidHex)
		})
	}
}

func TestExplainNRC(t *testing.T) {
	d := newDecoder(t)

	pending := d.ExplainNRC(0x78)
	assert.True(t, pending.Documented)
	assert.True(t, pending.Benign)
	assert.Equal(t, "78", pending.Code)
	assert.Equal(t, "requestCorrectlyReceivedResponsePending", pending.Name)
	assert.Equal(t, reference.NRCPending, pending.Category)

	denied := d.ExplainNRC(0x33)
	assert.True(t, denied.Documented)
	assert.False(t, denied.Benign)
	assert.Equal(t, reference.NRCSecurity, denied.Category)
}

func TestExplainNRCUndocumented(t *testing.T) {
	d := newDecoder(t)

	got := d.ExplainNRC(0xF5)
	assert.False(t, got.Documented)
	assert.Equal(t, "F5", got.Code)
	assert.Contains(t, got.Meaning, "manufacturer")
	assert.Contains(t, got.Meaning, "not documented")
}

func TestDecomposeNegativeResponse(t *testing.T) {
	d := newDecoder(t)

	g, err := d.Decompose("7E8 03 7F 31 78")
	require.NoError(t, err)

	assert.True(t, g.BestEffort)
	assert.Equal(t, BestEffortNote, g.Note)
	assert.Equal(t, []string{"can_id", "pci_single_frame", "service_id", "rejected_service", "nrc"}, fieldNames(g))

	assert.Equal(t, "PCM response", field(t, g, "can_id").Meaning)
	assert.Equal(t, "RoutineControl", field(t, g, "rejected_service").Meaning)
	nrc := field(t, g, "nrc")
	assert.Equal(t, "78", nrc.Hex)
	assert.Equal(t, "requestCorrectlyReceivedResponsePending", nrc.Meaning)
}

func TestDecomposeCANFrameWithPadding(t *testing.T) {
	d := newDecoder(t)

	g, err := d.Decompose("07 E0 03 22 F1 90 00 00 00 00")
	require.NoError(t, err)

	assert.Equal(t, []string{"can_id", "pci_single_frame", "service_id", "did", "padding"}, fieldNames(g))

	id := field(t, g, "can_id")
	assert.Equal(t, "7E0", id.Hex)
	assert.Equal(t, "PCM", id.Meaning)

	assert.Equal(t, 2, field(t, g, "pci_single_frame").Offset)
	assert.Equal(t, "ReadDataByIdentifier", field(t, g, "service_id").Meaning)

	did := field(t, g, "did")
	assert.Equal(t, "F190", did.Hex)
	assert.Equal(t, 4, did.Offset)

	padding := field(t, g, "padding")
	assert.Equal(t, "00000000", padding.Hex)
	assert.Equal(t, 6, padding.Offset)
}

func TestDecomposeRawUDS(t *testing.T) {
	d := newDecoder(t)

	g, err := d.Decompose("62 F1 90 31 46 54")
	require.NoError(t, err)
	assert.Equal(t, []string{"service_id", "did", "payload"}, fieldNames(g))
	assert.Equal(t, "ReadDataByIdentifier positive response", field(t, g, "service_id").Meaning)
	assert.Equal(t, "314654", field(t, g, "payload").Hex)

	// 0x10 is a service id here, not a first-frame PCI.
	g, err = d.Decompose("10 03")
	require.NoError(t, err)
	assert.Equal(t, []string{"service_id", "payload"}, fieldNames(g))
	assert.Equal(t, "DiagnosticSessionControl", field(t, g, "service_id").Meaning)
}

func TestDecomposeFlowControl(t *testing.T) {
	d := newDecoder(t)

	g, err := d.Decompose("30 00 14")
	require.NoError(t, err)
	assert.Equal(t, []string{"pci_flow_control", "block_size", "st_min"}, fieldNames(g))
	assert.Equal(t, "flow control, continue to send", field(t, g, "pci_flow_control").Meaning)
	assert.Equal(t, "14", field(t, g, "st_min").Hex)
}

func TestDecomposeInvalid(t *testing.T) {
	d := newDecoder(t)

	_, err := d.Decompose("XYZ")
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestServiceName(t *testing.T) {
	name, ok := ServiceName(0x27)
	assert.True(t, ok)
	assert.Equal(t, "SecurityAccess", name)

	name, ok = ServiceName(0x67)
	assert.True(t, ok)
	assert.Equal(t, "SecurityAccess positive response", name)

	_, ok = ServiceName(0xA5)
	assert.False(t, ok)
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		in   string
		want byte
	}{
		{"78", 0x78},
		{"0x31", 0x31},
		{"7F 31 78", 0x78},
		{"7f:22:33", 0x33},
	}
	for _, tt := range tests {
		got, err := ParseCode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "7", "zz", "01 02", "10 31 78"} {
		_, err := ParseCode(bad)
		assert.ErrorIs(t, err, ErrInvalidHex, bad)
	}
}
