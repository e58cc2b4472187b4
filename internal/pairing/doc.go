// Package pairing builds the two complementary stimulus sets used across the
// rounds of an experiment.
//
// Every non-uniform object in a catalog has an essentially-equal partner with
// the opposite orientation (the same physical object, flipped). Build splits
// each such pair between the Flipped and Unflipped sets at random, and puts
// every uniform object in both. Rounds then alternate between the two sets,
// so a participant sees each physical object in both orientations over the
// course of the experiment without meeting both orientations in one round.
//
// Draw distribution:
//   - choose one of the non-empty orientation pools uniformly at random;
//   - choose one object in that pool uniformly at random;
//   - the chosen object goes to Unflipped, its first complement found by a
//     linear scan of the other pool goes to Flipped.
//
// Randomness is always supplied by the caller as a *rand.Rand so tests can
// reproduce a draw exactly.
package pairing
