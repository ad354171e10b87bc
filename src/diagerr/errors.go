// Package diagerr defines the error taxonomy shared by every engine stage.
package diagerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrEncoding             = errors.New("unsupported encoding")
	ErrReferenceDataMissing = errors.New("reference data missing")
)

// MalformedInputError reports content that cannot be parsed in the declared format.
// It is never retried automatically; the caller chooses a fallback format.
type MalformedInputError struct {
	Format string
	Line   int
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed %s input", e.Format)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// EncodingError reports binary or otherwise undecodable content.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := "unsupported encoding: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// ReferenceDataMissingError is fatal for a run: without the tables no module
// or NRC can be named.
type ReferenceDataMissingError struct {
	Table string
	Path  string
	Err   error
}

func (e *ReferenceDataMissingError) Error() string {
	msg := "reference data missing"
	if e.Table != "" {
		msg += ": " + e.Table + " table"
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReferenceDataMissingError) Unwrap() error { return e.Err }

func (e *ReferenceDataMissingError) Is(target error) bool { return target == ErrReferenceDataMissing }

// AmbiguousMetadataWarning marks a metadata field that saw conflicting values,
// which usually means several sessions were concatenated into one log.
// It is stored on the session metadata, never returned as an error.
type AmbiguousMetadataWarning struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

func (w AmbiguousMetadataWarning) Error() string {
	return fmt.Sprintf("ambiguous %s: %s", w.Field, strings.Join(w.Values, ", "))
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts engine errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var malformed *MalformedInputError
	if errors.As(err, &malformed) {
		hint := "Check that the file is complete and well-formed."
		if malformed.Format == "xml" {
			hint = "The file could not be parsed as XML. Retry with --format text to analyse it line by line."
		}
		return &UserError{
			Message: "Log could not be parsed",
			Hint:    hint,
			Err:     err,
		}
	}

	if errors.Is(err, ErrEncoding) {
		return &UserError{
			Message: "Log is not a text file",
			Hint:    "Supported encodings: UTF-8, UTF-16 with byte-order mark, Windows-1252.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrReferenceDataMissing) {
		return &UserError{
			Message: "Reference tables could not be loaded",
			Hint:    "Pass --reference with a YAML or TOML table file, or omit it to use the built-in tables.",
			Err:     err,
		}
	}

	return err
}
