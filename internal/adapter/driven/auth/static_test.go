package auth

import (
	"errors"
	"testing"
)

func TestStaticSecret_Verify(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		given    string
		ok       bool
	}{
		{"match", "x", "x", true},
		{"mismatch", "x", "y", false},
		{"prefix", "secret", "sec", false},
		{"empty given", "x", "", false},
		{"empty expected", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewStaticSecret(tc.expected).Verify(tc.given)
			if tc.ok && err != nil {
				t.Fatalf("err=%v, want nil", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidSecret) {
				t.Fatalf("err=%v, want %v", err, ErrInvalidSecret)
			}
		})
	}
}
