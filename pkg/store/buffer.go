package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

// BufferAppend adds one buffered turn for userID. Duplicate calls create
// duplicate turns; callers invoke it exactly once per real message.
func (s *SQLiteStore) BufferAppend(ctx context.Context, userID, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_buffer(user_id, role, content, created_at_ms)
VALUES(?, ?, ?, ?)`, userID, role, content, nowMS())
	if err != nil {
		return fmt.Errorf("buffer append: %w", err)
	}
	return nil
}

// BufferSize returns the buffered-turn count for userID.
func (s *SQLiteStore) BufferSize(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_buffer WHERE user_id = ?`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("buffer size: %w", err)
	}
	return n, nil
}

// BufferedUserIDs lists users that currently have buffered turns, used by
// the periodic stale-buffer sweep.
func (s *SQLiteStore) BufferedUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM conversation_buffer`)
	if err != nil {
		return nil, fmt.Errorf("buffered user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan buffered user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("buffered user ids rows: %w", err)
	}
	return out, nil
}

// DrainBuffer atomically reads every buffered turn for userID in insertion
// order, deletes them, and advances the extraction record, returning the
// batch. An empty buffer is a no-op: no rows, no record update.
//
// The delete runs before the record update inside one transaction so that on
// partial failure the buffer remains the canonical "extraction owed" signal.
// If the delete touches a different row count than the read returned, the
// transaction is rolled back and ErrInconsistentDrain is returned rather
// than silently advancing the record past undrained turns.
func (s *SQLiteStore) DrainBuffer(ctx context.Context, userID string) ([]BufferedTurn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("drain begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
SELECT id, user_id, role, content, created_at_ms
FROM conversation_buffer
WHERE user_id = ?
ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("drain read: %w", err)
	}

	var batch []BufferedTurn
	for rows.Next() {
		var t BufferedTurn
		var createdMS int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &createdMS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("drain scan: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdMS)
		batch = append(batch, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("drain rows: %w", err)
	}
	rows.Close()

	if len(batch) == 0 {
		return nil, nil
	}

	res, err := tx.ExecContext(ctx, `
DELETE FROM conversation_buffer WHERE user_id = ? AND id <= ?`, userID, batch[len(batch)-1].ID)
	if err != nil {
		return nil, fmt.Errorf("drain delete: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("drain rows affected: %w", err)
	}
	if deleted != int64(len(batch)) {
		return nil, fmt.Errorf("read %d, deleted %d: %w", len(batch), deleted, ErrInconsistentDrain)
	}

	// Two-branch upsert keeps the record update portable to stores without
	// native ON CONFLICT syntax.
	now := nowMS()
	var count int
	err = tx.QueryRowContext(ctx, `
SELECT extraction_count FROM extraction_log WHERE user_id = ?`, userID).Scan(&count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
INSERT INTO extraction_log(user_id, last_extraction_ms, extraction_count)
VALUES(?, ?, 1)`, userID, now); err != nil {
			return nil, fmt.Errorf("drain insert extraction record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("drain read extraction record: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
UPDATE extraction_log SET last_extraction_ms = ?, extraction_count = ? WHERE user_id = ?`,
			now, count+1, userID); err != nil {
			return nil, fmt.Errorf("drain update extraction record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("drain commit: %w", err)
	}
	return batch, nil
}

// GetExtractionRecord fetches the extraction bookkeeping for userID.
// The second return value is false when no drain has ever completed.
func (s *SQLiteStore) GetExtractionRecord(ctx context.Context, userID string) (ExtractionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, last_extraction_ms, extraction_count
FROM extraction_log WHERE user_id = ?`, userID)

	var rec ExtractionRecord
	var lastMS int64
	if err := row.Scan(&rec.UserID, &lastMS, &rec.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtractionRecord{}, false, nil
		}
		return ExtractionRecord{}, false, fmt.Errorf("get extraction record: %w", err)
	}
	rec.LastExtraction = time.UnixMilli(lastMS)
	return rec, true, nil
}

// ClearBuffer deletes all buffered turns for userID without touching the
// extraction record.
func (s *SQLiteStore) ClearBuffer(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_buffer WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear buffer: %w", err)
	}
	return nil
}

// ClearBufferSync is the fire-and-forget form of ClearBuffer for erasure
// paths with no context to thread through.
func (s *SQLiteStore) ClearBufferSync(userID string) {
	if _, err := s.db.Exec(`DELETE FROM conversation_buffer WHERE user_id = ?`, userID); err != nil {
		logger.ErrorCF("store", "clear buffer failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// DeleteExtractionRecord removes the extraction bookkeeping for userID,
// used only by the user-erasure flow.
func (s *SQLiteStore) DeleteExtractionRecord(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM extraction_log WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete extraction record: %w", err)
	}
	return nil
}
