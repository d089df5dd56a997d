// Package common defines sentinel errors shared by the repositories and the
// relay core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors.
	ErrorInvalidHandle  = errors.New("invalid account handle")
	ErrorInvalidChannel = errors.New("invalid destination channel")
)
