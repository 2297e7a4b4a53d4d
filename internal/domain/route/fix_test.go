package route

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"rider-tracking/internal/domain/geo"
)

func TestNewFixDefaultsTimestamp(t *testing.T) {
	received := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	f, err := NewFix("s-1", "emp-1", bengaluru, nil, nil, time.Time{}, received)
	if err != nil {
		t.Fatalf("new fix: %v", err)
	}
	if !f.Timestamp.Equal(received.Truncate(time.Microsecond)) {
		t.Fatalf("timestamp = %v, want received time", f.Timestamp)
	}
}

func TestNewFixValidation(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name  string
		build func() (*Fix, error)
		field string
	}{
		{"missing session", func() (*Fix, error) { return NewFix("", "e", bengaluru, nil, nil, time.Now(), time.Now()) }, "session_id"},
		{"bad latitude", func() (*Fix, error) {
			return NewFix("s", "e", geo.Point{Latitude: 91}, nil, nil, time.Now(), time.Now())
		}, "position"},
		{"negative accuracy", func() (*Fix, error) { return NewFix("s", "e", bengaluru, &neg, nil, time.Now(), time.Now()) }, "accuracy"},
		{"negative speed", func() (*Fix, error) { return NewFix("s", "e", bengaluru, nil, &neg, time.Now(), time.Now()) }, "speed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("err = %v, want validation error on %s", err, tc.field)
			}
		})
	}
}

func TestFixKeyOrdering(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := FixKey{Timestamp: ts, Latitude: 1, Longitude: 1}
	b := FixKey{Timestamp: ts, Latitude: 1, Longitude: 2}
	c := FixKey{Timestamp: ts.Add(time.Second), Latitude: 0, Longitude: 0}

	if !a.Less(b) || !b.Less(c) || c.Less(a) {
		t.Fatalf("unexpected key ordering")
	}
	if !a.Equal(FixKey{Timestamp: ts, Latitude: 1, Longitude: 1}) {
		t.Fatalf("identical keys must be equal")
	}
}

func sampleTrack() []Fix {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var fixes []Fix
	for i := 0; i < 12; i++ {
		fixes = append(fixes, Fix{
			SessionID: "s-1",
			Position:  geo.Point{Latitude: 12.9716 + float64(i)*0.001, Longitude: 77.5946 + float64(i%3)*0.0007},
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
		})
	}
	return fixes
}

func TestReplayDistanceOrderIndependent(t *testing.T) {
	ordered := sampleTrack()
	want := ReplayDistance(bengaluru, 0, ordered)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := sampleTrack()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		SortFixes(shuffled)
		got := ReplayDistance(bengaluru, 0, shuffled)
		if got != want {
			t.Fatalf("round %d: total %v, want %v", round, got, want)
		}
		for i := range shuffled {
			if shuffled[i].CumulativeKM != ordered[i].CumulativeKM {
				t.Fatalf("round %d: cumulative mismatch at %d", round, i)
			}
		}
	}
}

func TestReplayDistanceSuffixMatchesFullReplay(t *testing.T) {
	full := sampleTrack()
	want := ReplayDistance(bengaluru, 0, full)

	partial := sampleTrack()
	ReplayDistance(bengaluru, 0, partial[:5])
	got := ReplayDistance(partial[4].Position, partial[4].CumulativeKM, partial[5:])
	if got != want {
		t.Fatalf("suffix replay = %v, full replay = %v", got, want)
	}
}

func TestReplayDistanceExample(t *testing.T) {
	fixes := []Fix{{Position: geo.Point{Latitude: 12.9720, Longitude: 77.5950}}}
	ReplayDistance(bengaluru, 0, fixes)
	if got := fixes[0].DistanceKM(); got != 0.06 {
		t.Fatalf("total = %v, want 0.06", got)
	}
}

func TestReplayDistanceKeepsShortSegments(t *testing.T) {
	// 1 Hz walking: about 1.4 m between fixes, 200 fixes north of the start.
	const step = 1.4 / 111195.0
	fixes := make([]Fix, 200)
	for i := range fixes {
		fixes[i].Position = geo.Point{Latitude: bengaluru.Latitude + float64(i+1)*step, Longitude: bengaluru.Longitude}
	}
	total := ReplayDistance(bengaluru, 0, fixes)
	s := Session{TotalDistanceKM: total}
	if got := s.DistanceKM(); got != 0.28 {
		t.Fatalf("reported distance = %v, want 0.28", got)
	}
}
