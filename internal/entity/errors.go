package entity

import "errors"

// Error codes surfaced in the API error shape. CodeNoTemplate is the one
// callers are expected to render distinctly (prompting template setup).
const (
	CodeNoTemplate   = "NO_TEMPLATE"
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
)

var (
	// ErrNoActiveTemplate means the company has no active design template,
	// so an embedded export cannot proceed.
	ErrNoActiveTemplate = errors.New("no active design template for company")

	// ErrNotFound means the requested record does not exist or is not
	// visible to the requesting company.
	ErrNotFound = errors.New("record not found")
)
