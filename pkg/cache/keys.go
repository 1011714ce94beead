package cache

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// MaxKeyLength is the longest key a layer accepts.
const MaxKeyLength = 250

// ValidateKey checks that key is non-empty, at most MaxKeyLength bytes, free
// of control characters and not padded with whitespace.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, MaxKeyLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
	}

	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: key has leading or trailing whitespace", ErrInvalidKey)
	}

	return nil
}

// KeyPattern builds keys of the form prefix:part:part.
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a key pattern. An empty separator means ":".
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts verbatim.
// Example: pattern.Build("user", "123") -> "user:123"
func (kp *KeyPattern) Build(parts ...string) string {
	var b strings.Builder
	b.WriteString(kp.prefix)
	for _, part := range parts {
		b.WriteString(kp.separator)
		b.WriteString(part)
	}
	return b.String()
}

// Query builds the key of a query result: prefix, snapshot id, operation,
// then each argument query-escaped so that names containing the separator or
// whitespace cannot collide with another key. The key is validated before it
// is returned.
func (kp *KeyPattern) Query(snapshotID, operation string, args ...string) (string, error) {
	parts := make([]string, 0, 2+len(args))
	parts = append(parts, snapshotID, operation)
	for _, arg := range args {
		parts = append(parts, url.QueryEscape(arg))
	}

	key := kp.Build(parts...)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
