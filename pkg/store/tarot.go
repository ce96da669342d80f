package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const maxInterpretationLen = 1000

// SaveReading persists one tarot reading and trims the per-user history to
// maxReadings using the same boundary-id scheme as the turn log.
func (s *SQLiteStore) SaveReading(ctx context.Context, userID, question, cardsJSON, interpretation string, maxReadings int) error {
	if len([]rune(interpretation)) > maxInterpretationLen {
		interpretation = string([]rune(interpretation)[:maxInterpretationLen])
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO tarot_readings(user_id, question, cards_json, interpretation, created_at_ms)
VALUES(?, ?, ?, ?, ?)`, userID, question, cardsJSON, interpretation, nowMS())
	if err != nil {
		return fmt.Errorf("save reading: %w", err)
	}

	if maxReadings <= 0 {
		return nil
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id FROM tarot_readings
WHERE user_id = ?
ORDER BY id DESC
LIMIT 1 OFFSET ?`, userID, maxReadings)

	var boundaryID int64
	if err := row.Scan(&boundaryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find reading trim boundary: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
DELETE FROM tarot_readings WHERE user_id = ? AND id <= ?`, userID, boundaryID); err != nil {
		return fmt.Errorf("trim readings: %w", err)
	}
	return nil
}

// RecentReadings returns up to limit most recent readings, newest first.
func (s *SQLiteStore) RecentReadings(ctx context.Context, userID string, limit int) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, question, cards_json, interpretation, created_at_ms
FROM tarot_readings
WHERE user_id = ?
ORDER BY id DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var createdMS int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.Question, &r.CardsJSON, &r.Interpretation, &createdMS); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent readings rows: %w", err)
	}
	return out, nil
}

// ClearReadings deletes a user's reading history (erasure flow).
func (s *SQLiteStore) ClearReadings(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tarot_readings WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	return nil
}
