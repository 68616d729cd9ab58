// Package face implements the liveness-gated enrollment and
// verification flow for biometric profile unlock.
//
// Only the numeric face descriptor, a fixed-length vector summarizing
// a detected face, ever reaches this package or the store. Raw camera
// frames stay on the client and are never transmitted or persisted.
package face

import (
	"fmt"
	"math"
)

const (
	// DescriptorDim is the required descriptor length. Detectors
	// producing any other dimensionality are rejected outright.
	DescriptorDim = 128

	// MinMagnitude is the minimum L2 norm a descriptor must have.
	// Guards against a degenerate or zeroed vector being silently
	// enrolled, which would then "match" almost anything near zero.
	MinMagnitude = 0.1

	// MatchThreshold is the Euclidean distance below which two
	// descriptors are considered the same face. At or above the
	// threshold is not a match; the boundary itself does not match.
	MatchThreshold = 0.6
)

// Descriptor is a fixed-length face embedding.
type Descriptor []float32

// Magnitude returns the L2 norm of the descriptor.
func (d Descriptor) Magnitude() float64 {
	sumSq := 0.0
	for _, x := range d {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}

// Validate rejects descriptors of the wrong dimensionality or with a
// magnitude below the minimum. Errors are user-facing.
func (d Descriptor) Validate() error {
	if len(d) != DescriptorDim {
		return fmt.Errorf("face capture produced %d values, expected %d; please retry", len(d), DescriptorDim)
	}
	if m := d.Magnitude(); m < MinMagnitude {
		return fmt.Errorf("face capture quality too low (magnitude %.3f); please retry in better lighting", m)
	}
	return nil
}

// Distance returns the Euclidean distance between two descriptors, or
// +Inf when their dimensions differ (never a match).
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	sumSq := 0.0
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq)
}

// Match reports whether candidate and stored describe the same face:
// strictly below MatchThreshold matches, at or above does not.
func Match(candidate, stored Descriptor) bool {
	return Distance(candidate, stored) < MatchThreshold
}
