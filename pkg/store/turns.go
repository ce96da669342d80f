package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

// AppendTurn writes one turn to the short-term log.
func (s *SQLiteStore) AppendTurn(ctx context.Context, userID, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chat_history(user_id, role, content, created_at_ms)
VALUES(?, ?, ?, ?)`, userID, role, content, nowMS())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// TrimTurns keeps the maxTurns most recent log rows for userID. It locates
// the boundary row at OFFSET maxTurns (newest first) and deletes everything
// at or before it in one statement. A row inserted between the two steps can
// leave one extra retained row; that drift is accepted, over-deletion is not.
func (s *SQLiteStore) TrimTurns(ctx context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id FROM chat_history
WHERE user_id = ?
ORDER BY id DESC
LIMIT 1 OFFSET ?`, userID, maxTurns)

	var boundaryID int64
	if err := row.Scan(&boundaryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find trim boundary: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
DELETE FROM chat_history WHERE user_id = ? AND id <= ?`, userID, boundaryID); err != nil {
		return fmt.Errorf("trim turns: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns, oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, role, content, created_at_ms
FROM chat_history
WHERE user_id = ?
ORDER BY id DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var createdMS int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &createdMS); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent turns rows: %w", err)
	}

	// Storage scan is newest-first; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountTurns returns the log row count for userID.
func (s *SQLiteStore) CountTurns(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_history WHERE user_id = ?`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

// ClearTurns deletes the full short-term log for userID.
func (s *SQLiteStore) ClearTurns(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// ClearTurnsSync is the fire-and-forget form of ClearTurns for erasure
// paths that have no context to thread through. Failures are logged.
func (s *SQLiteStore) ClearTurnsSync(userID string) {
	if _, err := s.db.Exec(`DELETE FROM chat_history WHERE user_id = ?`, userID); err != nil {
		logger.ErrorCF("store", "clear turns failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}
