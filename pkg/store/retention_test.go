package store

import (
	"context"
	"testing"
)

func TestPruneDailyRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SetGroupFortune(ctx, "g1", "2026-08-01", `{"stars":3}`); err != nil {
		t.Fatalf("set old fortune: %v", err)
	}
	if err := st.SetGroupFortune(ctx, "g1", "2026-08-30", `{"stars":5}`); err != nil {
		t.Fatalf("set fresh fortune: %v", err)
	}
	if err := st.UpsertRanking(ctx, "g1", "2026-08-01", RankingEntry{UserID: "u1", UserName: "a", PositiveCount: 2}); err != nil {
		t.Fatalf("old ranking: %v", err)
	}
	if err := st.BumpDailyUsage(ctx, "u1", "2026-08-01", "tarot"); err != nil {
		t.Fatalf("old usage: %v", err)
	}
	if err := st.BumpDailyUsage(ctx, "u1", "2026-08-30", "chat"); err != nil {
		t.Fatalf("fresh usage: %v", err)
	}

	removed, err := st.PruneDailyRows(ctx, "2026-08-23")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	if raw, err := st.GetGroupFortune(ctx, "g1", "2026-08-01"); err != nil || raw != "" {
		t.Fatalf("old fortune should be gone, got %q err %v", raw, err)
	}
	if raw, err := st.GetGroupFortune(ctx, "g1", "2026-08-30"); err != nil || raw == "" {
		t.Fatalf("fresh fortune should survive, got %q err %v", raw, err)
	}
	usage, err := st.GetDailyUsage(ctx, "u1", "2026-08-30")
	if err != nil || usage.ChatCount != 1 {
		t.Fatalf("fresh usage should survive, got %+v err %v", usage, err)
	}
}
