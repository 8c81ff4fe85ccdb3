// =============================================================================
// MDF-e Converter - Error Taxonomy
// =============================================================================
//
// Every failure raised by the conversion pipeline belongs to one of five
// kinds. Each kind has a sentinel (for errors.Is) and a typed error carrying
// the context needed to correct the source text (for errors.As).
//
//   MalformedLine          - unknown label or unparseable line
//   SchemaViolation        - a line cannot be placed in the document tree
//   MissingRequiredField   - a required element is empty at serialization
//   KeyMismatch            - the Id attribute disagrees with the fields
//   DocumentCountMismatch  - the batch header count is wrong
//
// =============================================================================

package mdfe

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINELS
// =============================================================================

var (
	ErrMalformedLine         = errors.New("malformed line")
	ErrSchemaViolation       = errors.New("schema violation")
	ErrMissingRequiredField  = errors.New("missing required field")
	ErrKeyMismatch           = errors.New("key mismatch")
	ErrDocumentCountMismatch = errors.New("document count mismatch")
)

// =============================================================================
// TYPED ERRORS
// =============================================================================

// MalformedLineError reports a line the decoder could not interpret.
type MalformedLineError struct {
	// Line is the 1-based line number inside the payload, 0 when unknown.
	Line int

	// Content is the raw line text.
	Content string

	// Reason says what was wrong with it.
	Reason string
}

func (e *MalformedLineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d (%q): %s", ErrMalformedLine, e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("%s (%q): %s", ErrMalformedLine, e.Content, e.Reason)
}

func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }

// SchemaViolationError reports a label that arrived where the document tree
// has no open attach point for it.
type SchemaViolationError struct {
	Label  string
	Reason string

	// Line and Content locate the offending line when the caller knows
	// them. Line is 0 otherwise.
	Line    int
	Content string
}

func (e *SchemaViolationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d (%q) on label %s: %s", ErrSchemaViolation, e.Line, e.Content, e.Label, e.Reason)
	}
	return fmt.Sprintf("%s on label %s: %s", ErrSchemaViolation, e.Label, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

// MissingFieldError names the group and field that must not be empty.
type MissingFieldError struct {
	Group string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s/%s", ErrMissingRequiredField, e.Group, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

// KeyMismatchError carries both keys so the operator can see which side is
// wrong. Expected is the key rebuilt from the document fields.
type KeyMismatchError struct {
	Expected string
	Actual   string
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("%s: Id carries %q, fields produce %q", ErrKeyMismatch, e.Actual, e.Expected)
}

func (e *KeyMismatchError) Unwrap() error { return ErrKeyMismatch }

// CountMismatchError compares the batch header with what was found.
type CountMismatchError struct {
	Declared int
	Detected int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: header declares %d, found %d", ErrDocumentCountMismatch, e.Declared, e.Detected)
}

func (e *CountMismatchError) Unwrap() error { return ErrDocumentCountMismatch }

// DocumentError ties a failure to the 1-based position of the document in
// its batch.
type DocumentError struct {
	Index int
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %d: %v", e.Index, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func violation(label, format string, args ...any) error {
	return &SchemaViolationError{Label: label, Reason: fmt.Sprintf(format, args...)}
}

// Missing builds a MissingFieldError for group/field.
func Missing(group, field string) error {
	return &MissingFieldError{Group: group, Field: field}
}
