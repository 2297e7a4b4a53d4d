package main

import (
	"math/rand"
	"testing"

	"rider-tracking/internal/domain/geo"
)

func TestLoopReturnsToStart(t *testing.T) {
	start := geo.Point{Latitude: 12.9716, Longitude: 77.5946}

	if d := geo.DistanceMeters(start, loopPoint(start, 400, 24, 24)); d > 0.5 {
		t.Fatalf("last step is %.2fm from start", d)
	}
	// half way round the loop is one diameter away
	if d := geo.DistanceMeters(start, loopPoint(start, 400, 12, 24)); d < 790 || d > 810 {
		t.Fatalf("half-way point is %.2fm from start, want about 800", d)
	}
}

func TestJitterStaysBounded(t *testing.T) {
	p := geo.Point{Latitude: 12.9716, Longitude: 77.5946}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if d := geo.DistanceMeters(p, jittered(p, 5, rng)); d > 7.5 {
			t.Fatalf("jitter moved the fix %.2fm", d)
		}
	}
}
