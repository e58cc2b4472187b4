package pairing

import (
	"errors"
	"fmt"
	"math/rand"

	"randomizer/internal/logging"
	"randomizer/internal/stimulus"

	"go.uber.org/zap"
)

var (
	// ErrOrientationImbalance is returned when the catalog has a different
	// number of left- and right-oriented objects.
	ErrOrientationImbalance = errors.New("orientation imbalance")

	// ErrMissingComplement is returned when a non-uniform object has no
	// essentially-equal counterpart in the opposite orientation.
	ErrMissingComplement = errors.New("missing complement")
)

// RoundSets holds the two complementary stimulus sets of an experiment.
type RoundSets struct {
	Flipped   []stimulus.Object
	Unflipped []stimulus.Object
}

// PerRound returns the number of stimuli in either set.
func (s RoundSets) PerRound() int {
	return len(s.Unflipped)
}

// ForRound returns the set presented in the given 1-based round: Unflipped on
// odd rounds, Flipped on even rounds. The returned slice is a copy.
func (s RoundSets) ForRound(round int) []stimulus.Object {
	src := s.Unflipped
	if round%2 == 0 {
		src = s.Flipped
	}
	return append([]stimulus.Object(nil), src...)
}

// Build pairs the catalog's oriented objects into flipped and unflipped sets.
// The catalog is not modified.
func Build(catalog stimulus.Catalog, rng *rand.Rand) (RoundSets, error) {
	if len(catalog.Left) != len(catalog.Right) {
		return RoundSets{}, fmt.Errorf("%w: %d left-oriented vs %d right-oriented objects",
			ErrOrientationImbalance, len(catalog.Left), len(catalog.Right))
	}
	if rng == nil {
		rng = NewRand(0)
	}

	perRound := catalog.PerRound()
	sets := RoundSets{
		Flipped:   make([]stimulus.Object, 0, perRound),
		Unflipped: make([]stimulus.Object, 0, perRound),
	}
	sets.Flipped = append(sets.Flipped, catalog.Uniform...)
	sets.Unflipped = append(sets.Unflipped, catalog.Uniform...)

	pools := [2][]stimulus.Object{
		append([]stimulus.Object(nil), catalog.Left...),
		append([]stimulus.Object(nil), catalog.Right...),
	}

	log := logging.Get(logging.CategoryPairing)
	for len(pools[0]) > 0 || len(pools[1]) > 0 {
		from := choosePool(pools, rng)
		other := 1 - from

		idx := rng.Intn(len(pools[from]))
		chosen := pools[from][idx]
		pools[from] = removeAt(pools[from], idx)

		match := -1
		for i, candidate := range pools[other] {
			if candidate.EssentiallyEqual(chosen) {
				match = i
				break
			}
		}
		if match < 0 {
			return RoundSets{}, fmt.Errorf("%w: no counterpart for %q", ErrMissingComplement, chosen.Identifier)
		}
		complement := pools[other][match]
		pools[other] = removeAt(pools[other], match)

		sets.Unflipped = append(sets.Unflipped, chosen)
		sets.Flipped = append(sets.Flipped, complement)

		log.Debug("paired complement",
			zap.String("unflipped", chosen.Identifier),
			zap.String("flipped", complement.Identifier))
	}

	log.Info("round sets built",
		zap.Int("uniform", len(catalog.Uniform)),
		zap.Int("pairs", len(catalog.Left)),
		zap.Int("per_round", sets.PerRound()))
	return sets, nil
}

// choosePool picks uniformly among the non-empty pools.
func choosePool(pools [2][]stimulus.Object, rng *rand.Rand) int {
	switch {
	case len(pools[0]) == 0:
		return 1
	case len(pools[1]) == 0:
		return 0
	default:
		return rng.Intn(2)
	}
}

func removeAt(pool []stimulus.Object, i int) []stimulus.Object {
	return append(pool[:i], pool[i+1:]...)
}

// Shuffle returns a freshly permuted copy of objects (Fisher–Yates via rng).
func Shuffle(objects []stimulus.Object, rng *rand.Rand) []stimulus.Object {
	out := append([]stimulus.Object(nil), objects...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
