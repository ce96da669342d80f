package tarot

import (
	"strings"
	"testing"
	"time"
)

func TestDraw(t *testing.T) {
	deck := NewDeckSeeded(1)
	for i := 0; i < 100; i++ {
		card := deck.Draw()
		if card.Name == "" {
			t.Fatal("drawn card has no name")
		}
		if card.Orientation != OrientationUpright && card.Orientation != OrientationReversed {
			t.Fatalf("unexpected orientation %q", card.Orientation)
		}
		if card.Meaning == "" {
			t.Fatalf("card %s has no meaning", card.Name)
		}
		if !strings.Contains(card.FullName(), card.Orientation) {
			t.Fatalf("full name %q missing orientation", card.FullName())
		}
	}
}

func TestThreeCardSpread(t *testing.T) {
	deck := NewDeckSeeded(7)
	spread := deck.ThreeCardSpread()
	if len(spread) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(spread))
	}

	wantPositions := []string{"过去", "现在", "未来"}
	seen := map[string]bool{}
	for i, card := range spread {
		if card.Position != wantPositions[i] {
			t.Fatalf("position[%d] = %q, want %q", i, card.Position, wantPositions[i])
		}
		if seen[card.Name] {
			t.Fatalf("card %s drawn twice in one spread", card.Name)
		}
		seen[card.Name] = true
	}
}

func TestScore(t *testing.T) {
	spread := []DrawnCard{
		{Name: "愚者", Orientation: OrientationUpright},
		{Name: "太阳", Orientation: OrientationUpright},
		{Name: "高塔", Orientation: OrientationReversed},
	}
	if got := Score(spread); got != 75 {
		t.Fatalf("score = %d, want 75", got)
	}
	if got := UprightCount(spread); got != 2 {
		t.Fatalf("upright count = %d, want 2", got)
	}
}

func TestGenerateGroupFortune(t *testing.T) {
	deck := NewDeckSeeded(42)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

	for i := 0; i < 50; i++ {
		f := deck.GenerateGroupFortune(now)
		positive := 0
		if f.MainCard.Upright() {
			positive++
		}
		if f.SubCard.Upright() {
			positive++
		}
		var wantStars int
		switch positive {
		case 2:
			wantStars = 5
		case 1:
			wantStars = 3
		default:
			wantStars = 2
		}
		if f.Stars != wantStars {
			t.Fatalf("stars = %d for %d uprights, want %d", f.Stars, positive, wantStars)
		}
		if f.Summary == "" || len(f.Suitable) == 0 || len(f.Avoid) == 0 {
			t.Fatal("fortune missing summary or activity lists")
		}
		if f.Date != "2026年03月14日" {
			t.Fatalf("date = %q", f.Date)
		}
	}
}

func TestFortuneRoundTrip(t *testing.T) {
	deck := NewDeckSeeded(3)
	f := deck.GenerateGroupFortune(time.Now())

	raw, err := EncodeFortune(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeFortune(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MainCard.Name != f.MainCard.Name || got.Stars != f.Stars {
		t.Fatalf("round trip mismatch: %#v vs %#v", got, f)
	}
}
