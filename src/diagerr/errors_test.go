package diagerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"malformed", &MalformedInputError{Format: "xml", Line: 3}, ErrMalformedInput},
		{"encoding", &EncodingError{Reason: "NUL byte"}, ErrEncoding},
		{"reference", &ReferenceDataMissingError{Table: "nrc"}, ErrReferenceDataMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("analyze: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestMalformedInputErrorMessage(t *testing.T) {
	err := &MalformedInputError{Format: "xml", Line: 12, Err: errors.New("unexpected EOF")}
	assert.Equal(t, "malformed xml input at line 12: unexpected EOF", err.Error())
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("yaml: line 4: did not find expected key")
	err := &ReferenceDataMissingError{Table: "ecu", Path: "refs.yaml", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ecu table")
	assert.Contains(t, err.Error(), "refs.yaml")
}

func TestAmbiguousMetadataWarning(t *testing.T) {
	w := AmbiguousMetadataWarning{Field: "vin", Values: []string{"1FTFW1RG3NFA95916", "1FMCU9GD5JUA12345"}}
	assert.Equal(t, "ambiguous vin: 1FTFW1RG3NFA95916, 1FMCU9GD5JUA12345", w.Error())
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantHint    string
	}{
		{
			name:        "malformed xml suggests text mode",
			err:         &MalformedInputError{Format: "xml", Line: 2},
			wantMessage: "Log could not be parsed",
			wantHint:    "--format text",
		},
		{
			name:        "encoding",
			err:         fmt.Errorf("open: %w", &EncodingError{Reason: "binary content"}),
			wantMessage: "Log is not a text file",
			wantHint:    "UTF-16",
		},
		{
			name:        "reference tables",
			err:         &ReferenceDataMissingError{Table: "nrc"},
			wantMessage: "Reference tables could not be loaded",
			wantHint:    "--reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err)
			var userErr *UserError
			require.ErrorAs(t, wrapped, &userErr)
			assert.Equal(t, tt.wantMessage, userErr.Message)
			assert.True(t, strings.Contains(userErr.Hint, tt.wantHint), "hint %q", userErr.Hint)
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

func TestWrapErrorPassThrough(t *testing.T) {
	assert.Nil(t, WrapError(nil))

	plain := errors.New("disk full")
	assert.Same(t, plain, WrapError(plain))
}
