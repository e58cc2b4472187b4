package pairing

import (
	"math/rand"
	"time"
)

// NewRand returns a *rand.Rand for seed. A zero seed derives one from the
// wall clock, so production sessions differ while tests stay reproducible.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
