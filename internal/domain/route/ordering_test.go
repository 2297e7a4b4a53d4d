package route

import (
	"testing"

	"rider-tracking/internal/domain/geo"
)

func TestOptimizePathNearestNeighbor(t *testing.T) {
	current := geo.Point{Latitude: 0, Longitude: 0}
	stops := []Stop{
		{ShipmentID: "far", Position: geo.Point{Latitude: 0, Longitude: 3}},
		{ShipmentID: "near", Position: geo.Point{Latitude: 0, Longitude: 1}},
		{ShipmentID: "mid", Position: geo.Point{Latitude: 0, Longitude: 2}},
	}

	got := OptimizePath(current, stops)
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if got[i].ShipmentID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ShipmentID, id)
		}
	}
	if stops[0].ShipmentID != "far" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestOptimizePathTieBreaksByInputOrder(t *testing.T) {
	current := geo.Point{Latitude: 0, Longitude: 0}
	stops := []Stop{
		{ShipmentID: "east", Position: geo.Point{Latitude: 0, Longitude: 1}},
		{ShipmentID: "west", Position: geo.Point{Latitude: 0, Longitude: -1}},
	}
	got := OptimizePath(current, stops)
	if got[0].ShipmentID != "east" {
		t.Fatalf("tie must prefer the earlier stop, got %s", got[0].ShipmentID)
	}

	reversed := []Stop{stops[1], stops[0]}
	got = OptimizePath(current, reversed)
	if got[0].ShipmentID != "west" {
		t.Fatalf("tie must prefer the earlier stop, got %s", got[0].ShipmentID)
	}
}

func TestOptimizePathEmpty(t *testing.T) {
	got := OptimizePath(geo.Point{}, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil ordering, got %v", got)
	}
}
