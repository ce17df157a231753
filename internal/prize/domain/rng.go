package domain

import "math/rand/v2"

// RNG is the randomness source for prize draws.
type RNG interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// SystemRNG draws from the process-wide generator.
type SystemRNG struct{}

func (SystemRNG) Intn(n int) int {
	return rand.IntN(n)
}
