package memory

import (
	"context"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/store"
)

// Message is one turn of a drained batch as handed to the extractor.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Extractor distills a batch of conversation turns into long-term memory.
// The algorithm is the extractor's own business; the service only owns the
// buffering, triggering and handoff around it.
type Extractor interface {
	ExtractMemories(ctx context.Context, userID string, batch []Message) error
}

// Store is the durable persistence the memory service depends on.
// *store.SQLiteStore satisfies it.
type Store interface {
	AppendTurn(ctx context.Context, userID, role, content string) error
	TrimTurns(ctx context.Context, userID string, maxTurns int) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]store.Turn, error)
	CountTurns(ctx context.Context, userID string) (int, error)
	ClearTurns(ctx context.Context, userID string) error

	BufferAppend(ctx context.Context, userID, role, content string) error
	BufferSize(ctx context.Context, userID string) (int, error)
	BufferedUserIDs(ctx context.Context) ([]string, error)
	DrainBuffer(ctx context.Context, userID string) ([]store.BufferedTurn, error)
	ClearBuffer(ctx context.Context, userID string) error
	GetExtractionRecord(ctx context.Context, userID string) (store.ExtractionRecord, bool, error)
	DeleteExtractionRecord(ctx context.Context, userID string) error

	ClearReadings(ctx context.Context, userID string) error
	ClearMemories(ctx context.Context, userID string) error
}

// Status is the observable memory state for one user (/memory command).
type Status struct {
	BufferSize      int
	TurnCount       int
	ExtractionCount int
	LastExtraction  time.Time
}

func toMessages(batch []store.BufferedTurn) []Message {
	out := make([]Message, 0, len(batch))
	for _, t := range batch {
		out = append(out, Message{Role: t.Role, Content: t.Content, Timestamp: t.CreatedAt})
	}
	return out
}
