package rng

import (
	"math/rand"

	"dqmon/ports"
)

// Adapter implements ports.RNGPort with math/rand sources
type Adapter struct{}

// New returns the default seeded RNG adapter
func New() ports.RNGPort {
	return Adapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (Adapter) SeededStream(name string, seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Stream derives a seed from scope, key and baseSeed with djb2 hashing so each
// (scope, key) pair owns an independent, reproducible sequence
func (Adapter) Stream(scope, key string, baseSeed int64) *rand.Rand {
	seed := baseSeed
	if scope != "" {
		seed = seed*31 + int64(hashString(scope))
	}
	if key != "" {
		seed = seed*31 + int64(hashString(key))
	}
	return rand.New(rand.NewSource(seed))
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
