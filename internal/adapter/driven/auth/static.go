package auth

import (
	"crypto/subtle"
	"errors"
)

var ErrInvalidSecret = errors.New("invalid shared secret")

// StaticSecret accepts exactly one process-wide secret.
type StaticSecret struct {
	Expected string
}

func NewStaticSecret(expected string) StaticSecret {
	return StaticSecret{Expected: expected}
}

func (s StaticSecret) Verify(secret string) error {
	if secret == "" || s.Expected == "" {
		return ErrInvalidSecret
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.Expected)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}
