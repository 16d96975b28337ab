package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn matches any *MissingColumnError.
	ErrMissingColumn = errors.New("missing column")
	// ErrMalformedInput matches any *MalformedInputError.
	ErrMalformedInput = errors.New("malformed input")
)

// MissingColumnError is returned when an aggregation needs a column the table lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// MalformedInputError describes a cell that could not be parsed.
type MalformedInputError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s at row %d (%q): %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// MalformedPolicy decides what happens to rows whose timestamps cannot be parsed.
type MalformedPolicy int

const (
	// SkipMalformed drops offending rows and reports how many were dropped.
	SkipMalformed MalformedPolicy = iota
	// RejectMalformed fails the whole call on the first offending row.
	RejectMalformed
)

// ParseMalformedPolicy maps "skip" and "reject" to a policy.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "", "skip":
		return SkipMalformed, nil
	case "reject":
		return RejectMalformed, nil
	}
	return SkipMalformed, fmt.Errorf("unknown malformed row policy %q", s)
}

func (p MalformedPolicy) String() string {
	if p == RejectMalformed {
		return "reject"
	}
	return "skip"
}
