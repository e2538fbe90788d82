// Package domain key.go contains functions to parse and validate secret keys.
package domain

// Key length bounds imposed by the remote service's identifier format.
const (
	MinKeyLen = 20
	MaxKeyLen = 32
)

// SecretKey is the opaque identifier addressing one secret resource on the
// remote service. It is a case-sensitive alphanumeric string of 20 to 32
// characters. The client never generates keys; they come from retrieval URLs
// or from the service's create response.
type SecretKey string

// ParseKey validates s and returns it as a SecretKey. It enforces:
// - length within [20, 32]
// - only [0-9A-Za-z], case preserved
// Returns ErrInvalidKey on failure. Validation happens client-side so that a
// malformed key never produces a network call.
func ParseKey(s string) (SecretKey, error) {
	if !isValidKey(s) {
		return "", ErrInvalidKey
	}
	return SecretKey(s), nil
}

// String returns the string form of the SecretKey.
func (k SecretKey) String() string { return string(k) }

// Valid reports whether the key satisfies the same rules as ParseKey.
func (k SecretKey) Valid() bool { return isValidKey(string(k)) }

// isValidKey performs validation without allocating errors.
func isValidKey(s string) bool {
	if len(s) < MinKeyLen || len(s) > MaxKeyLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
