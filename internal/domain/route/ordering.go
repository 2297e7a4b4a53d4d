package route

import "rider-tracking/internal/domain/geo"

// Stop is a pending pickup or delivery location supplied by the shipment service.
type Stop struct {
	ShipmentID string
	Position   geo.Point
	Address    string
}

// tieTolerance treats two candidate distances as equal; the earlier stop in the input wins.
const tieTolerance = 1e-9

// OptimizePath orders stops greedily: starting at current, it repeatedly picks the unvisited
// stop nearest to the last chosen position. The result is a heuristic, not a shortest path.
// The input slice is not modified.
func OptimizePath(current geo.Point, stops []Stop) []Stop {
	if len(stops) == 0 {
		return []Stop{}
	}

	visited := make([]bool, len(stops))
	ordered := make([]Stop, 0, len(stops))
	at := current

	for len(ordered) < len(stops) {
		best := -1
		bestKM := 0.0
		for i, stop := range stops {
			if visited[i] {
				continue
			}
			d := geo.DistanceKM(at, stop.Position)
			if best == -1 || d < bestKM-tieTolerance {
				best = i
				bestKM = d
			}
		}
		visited[best] = true
		ordered = append(ordered, stops[best])
		at = stops[best].Position
	}

	return ordered
}
