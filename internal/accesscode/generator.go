// Package accesscode produces the short human-enterable codes that identify
// a task to prospective members, and guarantees their uniqueness against the
// task store.
package accesscode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	Length   = 6
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws every character independently and uniformly from
// Alphabet.
type RandomGenerator struct {
	source io.Reader
	limit  *big.Int
}

func NewRandomGenerator() *RandomGenerator {
	return NewGeneratorFromSource(rand.Reader)
}

func NewGeneratorFromSource(source io.Reader) *RandomGenerator {
	return &RandomGenerator{
		source: source,
		limit:  big.NewInt(int64(len(Alphabet))),
	}
}

func (g *RandomGenerator) Generate() (string, error) {
	code := make([]byte, Length)
	for i := range code {
		n, err := rand.Int(g.source, g.limit)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Valid reports whether code has the exact shape of a generated code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// Normalize trims user input and upper-cases it. Generated codes never contain
// lower-case letters, so this does not widen the code space.
func Normalize(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}
