package channels

import (
	"strings"
	"testing"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
)

func TestIsAllowed(t *testing.T) {
	b := bus.NewMessageBus()
	defer b.Close()

	open := NewBaseChannel("test", b, nil)
	if !open.IsAllowed("anyone") {
		t.Fatal("empty allowlist must admit everyone")
	}

	restricted := NewBaseChannel("test", b, []string{"123", "@alice"})
	cases := []struct {
		senderID string
		want     bool
	}{
		{"123", true},
		{"123|bob", true},
		{"456|alice", true},
		{"alice", true},
		{"456", false},
		{"456|carol", false},
	}
	for _, tc := range cases {
		if got := restricted.IsAllowed(tc.senderID); got != tc.want {
			t.Fatalf("IsAllowed(%q) = %v, want %v", tc.senderID, got, tc.want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	short := "一句话"
	if got := splitMessage(short, 100); len(got) != 1 || got[0] != short {
		t.Fatalf("short message must stay whole, got %#v", got)
	}

	long := strings.Repeat("line one\n", 300)
	chunks := splitMessage(long, 1500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var rebuilt []string
	for _, chunk := range chunks {
		if len(chunk) > 1500 {
			t.Fatalf("chunk exceeds limit: %d bytes", len(chunk))
		}
		rebuilt = append(rebuilt, chunk)
	}
	// Nothing lost beyond the trimmed whitespace at chunk boundaries.
	joined := strings.Join(rebuilt, "\n")
	if strings.Count(joined, "line one") != 300 {
		t.Fatalf("content lost in split: %d of 300 lines", strings.Count(joined, "line one"))
	}
}

func TestSplitMessage_NoNaturalBoundary(t *testing.T) {
	long := strings.Repeat("a", 4000)
	chunks := splitMessage(long, 1500)
	total := 0
	for _, chunk := range chunks {
		if len(chunk) > 1500 {
			t.Fatalf("chunk exceeds limit: %d bytes", len(chunk))
		}
		total += len(chunk)
	}
	if total != 4000 {
		t.Fatalf("content lost: %d of 4000 bytes", total)
	}
}
