package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
)

func TestDefaultTablesLoad(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "builtin", tables.Source())
	assert.Equal(t, []string{"716"}, tables.Gateways())

	pcm, ok := tables.LookupECU("7e0")
	require.True(t, ok)
	assert.Equal(t, "PCM", pcm.Name)
	assert.Equal(t, contracts.CategoryCritical, pcm.Category)

	pending, ok := tables.LookupNRC(0x78)
	require.True(t, ok)
	assert.True(t, pending.Benign)
	assert.Equal(t, NRCPending, pending.Category)

	_, ok = tables.LookupNRC(0x99)
	assert.False(t, ok)
}

func TestCanonicalFoldsResponseAddress(t *testing.T) {
	tables := MustDefault()

	tests := []struct {
		input     string
		wantAddr  string
		wantKnown bool
	}{
		{"7E0", "7E0", true},
		{"7E8", "7E0", true},
		{"0x71E", "716", true},
		{"7a1", "7A1", false},
		{"123", "123", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, _, known := tables.Canonical(tt.input)
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestNewRejectsEmptyTables(t *testing.T) {
	_, err := New(nil, []NRCEntry{{Code: "78", Category: NRCPending}})
	require.ErrorIs(t, err, diagerr.ErrReferenceDataMissing)

	_, err = New([]ECUEntry{{Address: "7E0"}}, nil)
	require.ErrorIs(t, err, diagerr.ErrReferenceDataMissing)
}

func TestNewValidatesEntries(t *testing.T) {
	nrcs := []NRCEntry{{Code: "78", Category: NRCPending}}

	tests := []struct {
		name string
		ecus []ECUEntry
		nrcs []NRCEntry
	}{
		{"bad address", []ECUEntry{{Address: "7E"}}, nrcs},
		{"duplicate address", []ECUEntry{{Address: "7E0"}, {Address: "0x7e0"}}, nrcs},
		{"bad category", []ECUEntry{{Address: "7E0", Category: "VITAL"}}, nrcs},
		{"bad nrc code", []ECUEntry{{Address: "7E0"}}, []NRCEntry{{Code: "778", Category: NRCPending}}},
		{"bad nrc category", []ECUEntry{{Address: "7E0"}}, []NRCEntry{{Code: "78", Category: "busy"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ecus, tt.nrcs)
			assert.ErrorIs(t, err, diagerr.ErrReferenceDataMissing)
		})
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.toml")
	content := `
[[ecus]]
address = "7E0"
name = "ECM"
category = "CRITICAL"

[[ecus]]
address = "710"
name = "CGW"
gateway = true

[[nrcs]]
code = "0x78"
name = "responsePending"
meaning = "busy"
category = "pending"
benign = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, tables.Source())
	assert.Equal(t, []string{"710"}, tables.Gateways())

	cgw, ok := tables.LookupECU("710")
	require.True(t, ok)
	assert.Equal(t, contracts.CategoryStandard, cgw.Category, "empty category defaults to STANDARD")

	nrc, ok := tables.LookupNRC(0x78)
	require.True(t, ok)
	assert.Equal(t, "78", nrc.Code)
}

func TestLoadYAMLUnknownFieldFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.yaml")
	content := "ecus:\n  - address: \"7E0\"\n    colour: red\nnrcs:\n  - code: \"78\"\n    category: pending\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	var missing *diagerr.ReferenceDataMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, path, missing.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, diagerr.ErrReferenceDataMissing)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, diagerr.ErrReferenceDataMissing)
}

func TestAccessorsReturnCopies(t *testing.T) {
	tables := MustDefault()

	gw := tables.Gateways()
	gw[0] = "000"
	assert.Equal(t, []string{"716"}, tables.Gateways())

	ecus := tables.ECUs()
	require.NotEmpty(t, ecus)
	assert.Equal(t, "706", ecus[0].Address, "entries are sorted by address")
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		input   string
		want    byte
		wantErr bool
	}{
		{"78", 0x78, false},
		{"0x7F", 0x7F, false},
		{"a", 0x0A, false},
		{"", 0, true},
		{"123", 0, true},
		{"zz", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCode(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}
