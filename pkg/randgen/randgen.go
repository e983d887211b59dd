// Package randgen produces random strings used as anti-cache query values.
// The output is not suitable for anything security sensitive.
package randgen

import (
	"math/rand/v2"
	"strings"
)

const (
	// AlphaNumericAlphabet is the 62 character alphabet used by AlphaNumeric.
	AlphaNumericAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// DigitAlphabet is the alphabet used by Digits.
	DigitAlphabet = "0123456789"
)

// Source yields integers in [0, n). It must be safe for concurrent use.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generator draws strings from a Source.
type Generator struct {
	src Source
}

// New returns a Generator backed by the runtime's concurrency-safe source.
func New() *Generator {
	return &Generator{src: globalSource{}}
}

// NewWithSource returns a Generator backed by src.
func NewWithSource(src Source) *Generator {
	if src == nil {
		return New()
	}
	return &Generator{src: src}
}

// AlphaNumeric returns length characters drawn from AlphaNumericAlphabet.
func (g *Generator) AlphaNumeric(length int) string {
	return g.draw(AlphaNumericAlphabet, length)
}

// Digits returns length characters drawn from DigitAlphabet.
func (g *Generator) Digits(length int) string {
	return g.draw(DigitAlphabet, length)
}

// IntN returns an integer in [0, n).
func (g *Generator) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return g.src.IntN(n)
}

func (g *Generator) draw(alphabet string, length int) string {
	if length <= 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(alphabet[g.src.IntN(len(alphabet))])
	}
	return sb.String()
}

var defaultGenerator = New()

// AlphaNumeric draws from the package default generator.
func AlphaNumeric(length int) string { return defaultGenerator.AlphaNumeric(length) }

// Digits draws from the package default generator.
func Digits(length int) string { return defaultGenerator.Digits(length) }
