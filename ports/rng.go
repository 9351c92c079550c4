package ports

import (
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(name string, seed int64) *rand.Rand

	// Stream creates a deterministic RNG stream for one unit of work inside a scope.
	// The same (scope, key, baseSeed) always yields the same sequence, so units
	// built on parallel workers stay reproducible.
	Stream(scope, key string, baseSeed int64) *rand.Rand
}
