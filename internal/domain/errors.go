// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	ErrInvalidKey   = errors.New("invalid secret key")
	ErrTTLInvalid   = errors.New("ttl invalid")
	ErrEmptyContent = errors.New("content empty")
)
