package store

import (
	"context"
	"fmt"
	"testing"
)

func TestReadings_SaveAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		err := s.SaveReading(ctx, "u1", fmt.Sprintf("q%d", i), `[{"card":"The Fool"}]`, "reading text", 20)
		if err != nil {
			t.Fatalf("save reading %d: %v", i, err)
		}
	}

	readings, err := s.RecentReadings(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("recent readings: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].Question != "q3" {
		t.Fatalf("expected newest first, got %q", readings[0].Question)
	}
}

func TestReadings_BoundedRetention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const maxReadings = 4
	for i := 1; i <= maxReadings+2; i++ {
		err := s.SaveReading(ctx, "u1", fmt.Sprintf("q%d", i), "[]", "text", maxReadings)
		if err != nil {
			t.Fatalf("save reading %d: %v", i, err)
		}
	}

	readings, err := s.RecentReadings(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("recent readings: %v", err)
	}
	if len(readings) != maxReadings {
		t.Fatalf("expected %d retained readings, got %d", maxReadings, len(readings))
	}
	if readings[len(readings)-1].Question != "q3" {
		t.Fatalf("oldest retained should be q3, got %q", readings[len(readings)-1].Question)
	}
}

func TestReadings_LongInterpretationTruncated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	long := make([]rune, 1500)
	for i := range long {
		long[i] = 'x'
	}
	if err := s.SaveReading(ctx, "u1", "q", "[]", string(long), 20); err != nil {
		t.Fatalf("save reading: %v", err)
	}

	readings, err := s.RecentReadings(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("recent readings: %v", err)
	}
	if got := len([]rune(readings[0].Interpretation)); got != 1000 {
		t.Fatalf("expected interpretation truncated to 1000 runes, got %d", got)
	}
}
