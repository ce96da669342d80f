package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "wanqing.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTurnLog_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if err := s.AppendTurn(ctx, "u1", role, fmt.Sprintf("m%d", i+1)); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	turns, err := s.RecentTurns(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	// Oldest first.
	for i, turn := range turns {
		if want := fmt.Sprintf("m%d", i+1); turn.Content != want {
			t.Fatalf("turn %d content = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestTurnLog_RetentionTrim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const maxTurns = 5
	for i := 0; i < maxTurns+3; i++ {
		if err := s.AppendTurn(ctx, "u1", "user", fmt.Sprintf("m%d", i+1)); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
		if err := s.TrimTurns(ctx, "u1", maxTurns); err != nil {
			t.Fatalf("trim after turn %d: %v", i, err)
		}
	}

	turns, err := s.RecentTurns(ctx, "u1", maxTurns+10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != maxTurns {
		t.Fatalf("expected %d retained turns, got %d", maxTurns, len(turns))
	}
	if turns[0].Content != "m4" || turns[len(turns)-1].Content != "m8" {
		t.Fatalf("unexpected retained window: first=%q last=%q", turns[0].Content, turns[len(turns)-1].Content)
	}
}

func TestTurnLog_TrimDoesNotTouchOtherUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 6; i++ {
		if err := s.AppendTurn(ctx, "u1", "user", "x"); err != nil {
			t.Fatalf("append u1: %v", err)
		}
	}
	if err := s.AppendTurn(ctx, "u2", "user", "keep"); err != nil {
		t.Fatalf("append u2: %v", err)
	}
	if err := s.TrimTurns(ctx, "u1", 2); err != nil {
		t.Fatalf("trim u1: %v", err)
	}

	turns, err := s.RecentTurns(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("recent u2: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "keep" {
		t.Fatalf("u2 log disturbed: %#v", turns)
	}
}

func TestTurnLog_Clear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.AppendTurn(ctx, "u1", "user", "m1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ClearTurns(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, err := s.CountTurns(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty log, got %d turns", n)
	}
}

func TestTurnLog_ClearSync(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.AppendTurn(ctx, "u1", "user", "m1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.ClearTurnsSync("u1")

	n, err := s.CountTurns(ctx, "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty log after sync clear, got %d", n)
	}
}
