package route

import (
	"math"
	"sort"
	"strings"
	"time"

	"rider-tracking/internal/domain/geo"
)

// Fix is a single GPS reading belonging to a session (`route_coordinates` table).
type Fix struct {
	ID           int64
	SessionID    string
	EmployeeID   string
	Position     geo.Point
	Accuracy     *float64
	Speed        *float64
	Timestamp    time.Time // client-supplied, authoritative for ordering
	ReceivedAt   time.Time // server-assigned
	CumulativeKM float64   // unrounded running distance from the session start through this fix
}

// DistanceKM is the running distance as reported to clients, rounded to 2 decimals.
func (f *Fix) DistanceKM() float64 {
	return geo.Round2(f.CumulativeKM)
}

// FixKey is the ordering key of a fix inside its session.
type FixKey struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// NewFix constructs a validated fix. A zero timestamp falls back to receivedAt.
func NewFix(sessionID, employeeID string, position geo.Point, accuracy, speed *float64, timestamp, receivedAt time.Time) (*Fix, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	if timestamp.IsZero() {
		timestamp = receivedAt
	}

	fix := &Fix{
		SessionID:  strings.TrimSpace(sessionID),
		EmployeeID: strings.TrimSpace(employeeID),
		Position:   position,
		Accuracy:   accuracy,
		Speed:      speed,
		Timestamp:  NormalizeTime(timestamp),
		ReceivedAt: NormalizeTime(receivedAt),
	}
	if err := fix.Validate(); err != nil {
		return nil, err
	}
	return fix, nil
}

// Validate checks invariants of the Fix entity.
func (fix *Fix) Validate() error {
	if fix.SessionID == "" {
		return Invalid("session_id", "is required")
	}
	if err := fix.Position.Validate(); err != nil {
		return Invalid("position", err.Error())
	}
	if fix.Accuracy != nil && (*fix.Accuracy < 0 || math.IsNaN(*fix.Accuracy)) {
		return Invalid("accuracy", "cannot be negative")
	}
	if fix.Speed != nil && (*fix.Speed < 0 || math.IsNaN(*fix.Speed)) {
		return Invalid("speed", "cannot be negative")
	}
	if fix.Timestamp.IsZero() {
		return Invalid("timestamp", "is required")
	}
	return nil
}

// Key returns the ordering key of the fix.
func (fix *Fix) Key() FixKey {
	return FixKey{Timestamp: fix.Timestamp, Latitude: fix.Position.Latitude, Longitude: fix.Position.Longitude}
}

// Less orders keys by timestamp, then latitude, then longitude.
func (key FixKey) Less(other FixKey) bool {
	if !key.Timestamp.Equal(other.Timestamp) {
		return key.Timestamp.Before(other.Timestamp)
	}
	if key.Latitude != other.Latitude {
		return key.Latitude < other.Latitude
	}
	return key.Longitude < other.Longitude
}

// Equal reports whether both keys identify the same reading.
func (key FixKey) Equal(other FixKey) bool {
	return key.Timestamp.Equal(other.Timestamp) && key.Latitude == other.Latitude && key.Longitude == other.Longitude
}

// SortFixes orders fixes in place by their key.
func SortFixes(fixes []Fix) {
	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Key().Less(fixes[j].Key())
	})
}

// ReplayDistance recomputes CumulativeKM for fixes (already ordered) continuing the chain
// from anchor, whose running total is anchorKM. It returns the total after the last fix.
// Totals are kept unrounded; the chain is always summed in ordering-key order, so the result
// does not depend on arrival order.
func ReplayDistance(anchor geo.Point, anchorKM float64, fixes []Fix) float64 {
	prev := anchor
	total := anchorKM
	for i := range fixes {
		total += geo.SegmentKM(prev, fixes[i].Position)
		fixes[i].CumulativeKM = total
		prev = fixes[i].Position
	}
	return total
}
