// Package sluggen produces short codes for new links.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength gives 62^7 (about 3.5e12) possible codes.
	DefaultLength = 7

	// Bytes at or above this value are rejected so every character is equally likely.
	maxUnbiased = 256 - 256%len(base62Chars)
)

// Generator produces opaque short codes.
// Uniqueness is not guaranteed; callers rely on the store's unique key.
type Generator interface {
	Generate() string
}

// base62Generator implements Generator using base62 encoding.
// It is safe for concurrent use.
type base62Generator struct {
	length int
}

// NewBase62 returns a base62 code generator. Non-positive lengths fall back to DefaultLength.
func NewBase62(length int) Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &base62Generator{length: length}
}

// Generate returns a random base62 string of the configured length.
func (g *base62Generator) Generate() string {
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)

	for len(out) < g.length {
		// crypto/rand.Read never returns an error since Go 1.24.
		_, _ = rand.Read(buf)

		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, base62Chars[int(b)%len(base62Chars)])
			if len(out) == g.length {
				break
			}
		}
	}

	return string(out)
}
