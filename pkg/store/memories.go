package store

import (
	"context"
	"fmt"
	"time"
)

// Memory is one distilled long-term fact about a user.
type Memory struct {
	ID        int64
	UserID    string
	Content   string
	CreatedAt time.Time
}

// SaveMemories appends distilled facts for userID in one transaction.
func (s *SQLiteStore) SaveMemories(ctx context.Context, userID string, facts []string) error {
	if len(facts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save memories begin: %w", err)
	}
	defer tx.Rollback()

	for _, fact := range facts {
		if fact == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO user_memories(user_id, content, created_at_ms) VALUES(?, ?, ?)`,
			userID, fact, nowMS()); err != nil {
			return fmt.Errorf("save memory: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save memories commit: %w", err)
	}
	return nil
}

// ListMemories returns userID's stored facts, oldest first.
func (s *SQLiteStore) ListMemories(ctx context.Context, userID string, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, content, created_at_ms
FROM user_memories
WHERE user_id = ?
ORDER BY id ASC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		var createdMS int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &createdMS); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memories rows: %w", err)
	}
	return out, nil
}

// CountMemories returns the number of stored facts for userID.
func (s *SQLiteStore) CountMemories(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_memories WHERE user_id = ?`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// ClearMemories deletes every stored fact for userID.
func (s *SQLiteStore) ClearMemories(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_memories WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	return nil
}
