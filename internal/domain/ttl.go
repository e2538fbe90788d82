// Package domain ttl.go contains functions to validate TTL against the bounds
// the remote service accepts.
package domain

import (
	"strings"
	"time"
)

// TTL bounds enforced client-side before submission. The remote service
// accepts whole seconds in [5 minutes, 30 days].
const (
	MinTTL = 5 * time.Minute
	MaxTTL = 30 * 24 * time.Hour
)

// ValidateTTL checks that ttl is positive, expressible in whole seconds, and
// within [min, max]. Returns ErrTTLInvalid on any violation.
func ValidateTTL(ttl, minTTL, maxTTL time.Duration) error {
	if ttl <= 0 {
		return ErrTTLInvalid
	}
	if ttl != ttl.Truncate(time.Second) {
		return ErrTTLInvalid
	}
	if ttl < minTTL || ttl > maxTTL {
		return ErrTTLInvalid
	}
	return nil
}

// ClampTTL returns ttl constrained to the inclusive range [min, max].
// If ttl < min it returns min; if ttl > max it returns max; otherwise ttl.
func ClampTTL(ttl, minTTL, maxTTL time.Duration) time.Duration {
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}

// IsTTLValid is a convenience wrapper returning true if ValidateTTL reports no error.
func IsTTLValid(ttl, minTTL, maxTTL time.Duration) bool {
	return ValidateTTL(ttl, minTTL, maxTTL) == nil
}

// TTLOption pairs a human-readable label with its duration for presentation
// in the create form and the CLI.
type TTLOption struct {
	Label    string
	Duration time.Duration
}

// NewTTLOption parses label (a Go duration string, e.g. "1h", "24h") into a
// TTLOption with a normalized label. Returns ErrTTLInvalid when the label
// does not parse or the duration is not positive whole seconds.
func NewTTLOption(label string) (TTLOption, error) {
	label = strings.TrimSpace(label)
	d, err := time.ParseDuration(label)
	if err != nil || d <= 0 || d != d.Truncate(time.Second) {
		return TTLOption{}, ErrTTLInvalid
	}
	return TTLOption{Label: label, Duration: d}, nil
}
