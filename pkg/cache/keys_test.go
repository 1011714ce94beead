package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "txn:abc:totalAmount", false},
		{"valid simple key", "mykey", false},
		{"valid with escaped arg", "txn:abc:totalAmountSentBy:Tom+Shelby", false},
		{"valid with dots", "api.v1.users", false},
		{"empty key", "", true},
		{"too long", strings.Repeat("a", 300), true},
		{"control char null", "key\x00value", true},
		{"control char tab", "key\tvalue", true},
		{"control char newline", "key\nvalue", true},
		{"leading space", " key", true},
		{"trailing space", "key ", true},
		{"only spaces", "   ", true},
		{"unicode control", "key\x7fvalue", true}, // DEL character
		{"valid unicode", "café", false},
		{"exactly 250 chars", strings.Repeat("a", 250), false},
		{"251 chars", strings.Repeat("a", 251), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestKeyPattern_Build(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		separator string
		parts     []string
		expected  string
	}{
		{"no parts", "txn", ":", nil, "txn"},
		{"one part", "txn", ":", []string{"abc"}, "txn:abc"},
		{"many parts", "txn", ":", []string{"abc", "maxAmount"}, "txn:abc:maxAmount"},
		{"default separator", "txn", "", []string{"abc"}, "txn:abc"},
		{"custom separator", "txn", "/", []string{"a", "b"}, "txn/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp := NewKeyPattern(tt.prefix, tt.separator)
			if got := kp.Build(tt.parts...); got != tt.expected {
				t.Errorf("Build() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKeyPattern_Query(t *testing.T) {
	kp := NewKeyPattern("txn", ":")

	key, err := kp.Query("snap", "topSender")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if key != "txn:snap:topSender" {
		t.Errorf("Expected txn:snap:topSender, got %s", key)
	}

	key, err = kp.Query("snap", "totalAmountSentBy", "Tom Shelby")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if key != "txn:snap:totalAmountSentBy:Tom+Shelby" {
		t.Errorf("Expected escaped name, got %s", key)
	}
}

func TestKeyPattern_Query_NoCollisions(t *testing.T) {
	kp := NewKeyPattern("txn", ":")

	a, err := kp.Query("snap", "op", "a:b")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	b, err := kp.Query("snap", "op", "a", "b")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if a == b {
		t.Errorf("Keys collide: %s", a)
	}

	// Control characters and padding are escaped, not rejected
	c, err := kp.Query("snap", "op", " name\n")
	if err != nil {
		t.Errorf("Expected escaped arg to be valid, got %v", err)
	}
	if strings.ContainsAny(c, " \n") {
		t.Errorf("Expected escaped key, got %q", c)
	}
}

func TestKeyPattern_Query_TooLong(t *testing.T) {
	kp := NewKeyPattern("txn", ":")

	_, err := kp.Query("snap", "op", strings.Repeat("x", MaxKeyLength))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}
