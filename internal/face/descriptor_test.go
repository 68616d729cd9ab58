package face_test

import (
	"math"
	"testing"

	"github.com/tapfolio/tapfolio/internal/face"
)

// filled returns a 128-dim descriptor with every element set to v.
func filled(v float32) face.Descriptor {
	d := make(face.Descriptor, face.DescriptorDim)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestValidate_acceptsWellFormed(t *testing.T) {
	if err := filled(0.1).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_wrongDimension(t *testing.T) {
	for _, n := range []int{0, 1, 64, 127, 129, 512} {
		d := make(face.Descriptor, n)
		for i := range d {
			d[i] = 0.5
		}
		if err := d.Validate(); err == nil {
			t.Errorf("dimension %d: expected error", n)
		}
	}
}

func TestValidate_degenerateMagnitude(t *testing.T) {
	if err := filled(0).Validate(); err == nil {
		t.Error("zero vector: expected error")
	}
	// Tiny but nonzero still fails the magnitude floor.
	if err := filled(1e-4).Validate(); err == nil {
		t.Error("near-zero vector: expected error")
	}
}

func TestDistance_identicalIsZero(t *testing.T) {
	d := filled(0.25)
	if got := face.Distance(d, d); got != 0 {
		t.Errorf("distance to self = %v, want 0", got)
	}
}

func TestDistance_dimensionMismatchIsInf(t *testing.T) {
	a := filled(0.25)
	b := make(face.Descriptor, 64)
	if got := face.Distance(a, b); !math.IsInf(got, 1) {
		t.Errorf("distance = %v, want +Inf", got)
	}
}

// withDistance returns a pair of descriptors differing only in the
// first element, so their Euclidean distance is that single delta.
func withDistance(want float64) (face.Descriptor, face.Descriptor) {
	a := make(face.Descriptor, face.DescriptorDim)
	b := make(face.Descriptor, face.DescriptorDim)
	b[0] = float32(want)
	return a, b
}

func TestMatch_belowThreshold(t *testing.T) {
	a, b := withDistance(face.MatchThreshold - 0.01)
	if !face.Match(a, b) {
		t.Error("expected match just below threshold")
	}
}

func TestMatch_boundaryIsNotAMatch(t *testing.T) {
	// Exactly at the threshold must NOT match: match requires
	// strictly less than the threshold.
	a, b := withDistance(face.MatchThreshold)
	if face.Match(a, b) {
		t.Error("distance exactly at threshold must not match")
	}
}

func TestMatch_aboveThreshold(t *testing.T) {
	a, b := withDistance(face.MatchThreshold + 0.1)
	if face.Match(a, b) {
		t.Error("expected no match above threshold")
	}
}
