package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const maxPKRecordsPerGroup = 100

// GetGroupFortune returns the stored fortune JSON for groupID on date,
// or "" when none has been generated yet.
func (s *SQLiteStore) GetGroupFortune(ctx context.Context, groupID, date string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT fortune_json FROM group_fortunes WHERE group_id = ? AND fortune_date = ?`, groupID, date)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get group fortune: %w", err)
	}
	return raw, nil
}

// SetGroupFortune upserts the fortune JSON for groupID on date.
func (s *SQLiteStore) SetGroupFortune(ctx context.Context, groupID, date, fortuneJSON string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO group_fortunes(group_id, fortune_date, fortune_json)
VALUES(?, ?, ?)
ON CONFLICT(group_id, fortune_date) DO UPDATE SET fortune_json = excluded.fortune_json`,
		groupID, date, fortuneJSON)
	if err != nil {
		return fmt.Errorf("set group fortune: %w", err)
	}
	return nil
}

// UpsertRanking records a user's divination result on the group's daily
// leaderboard, replacing any earlier result for the same day.
func (s *SQLiteStore) UpsertRanking(ctx context.Context, groupID, date string, entry RankingEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO group_rankings(group_id, user_id, user_name, positive_count, cards_json, ranking_date)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(group_id, user_id, ranking_date) DO UPDATE SET
	user_name = excluded.user_name,
	positive_count = excluded.positive_count,
	cards_json = excluded.cards_json`,
		groupID, entry.UserID, entry.UserName, entry.PositiveCount, entry.CardsJSON, date)
	if err != nil {
		return fmt.Errorf("upsert ranking: %w", err)
	}
	return nil
}

// GetRanking returns the group leaderboard for date, best first.
func (s *SQLiteStore) GetRanking(ctx context.Context, groupID, date string) ([]RankingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, user_name, positive_count, cards_json
FROM group_rankings
WHERE group_id = ? AND ranking_date = ?
ORDER BY positive_count DESC, user_id ASC`, groupID, date)
	if err != nil {
		return nil, fmt.Errorf("get ranking: %w", err)
	}
	defer rows.Close()

	var out []RankingEntry
	for rows.Next() {
		var e RankingEntry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.PositiveCount, &e.CardsJSON); err != nil {
			return nil, fmt.Errorf("scan ranking entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get ranking rows: %w", err)
	}
	return out, nil
}

// AddPKRecord stores one duel and keeps the most recent 100 per group.
func (s *SQLiteStore) AddPKRecord(ctx context.Context, rec PKRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pk_records(group_id, user1_id, user1_name, user1_cards_json, user1_score,
	user2_id, user2_name, user2_cards_json, user2_score, winner_id, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GroupID, rec.User1ID, rec.User1Name, rec.User1Cards, rec.User1Score,
		rec.User2ID, rec.User2Name, rec.User2Cards, rec.User2Score, rec.WinnerID, nowMS())
	if err != nil {
		return fmt.Errorf("add pk record: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
DELETE FROM pk_records
WHERE group_id = ? AND id NOT IN (
	SELECT id FROM pk_records WHERE group_id = ?
	ORDER BY id DESC LIMIT ?
)`, rec.GroupID, rec.GroupID, maxPKRecordsPerGroup); err != nil {
		return fmt.Errorf("trim pk records: %w", err)
	}
	return nil
}

// GetPKStats summarizes userID's duel results within groupID.
func (s *SQLiteStore) GetPKStats(ctx context.Context, groupID, userID string) (PKStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT winner_id FROM pk_records
WHERE group_id = ? AND (user1_id = ? OR user2_id = ?)`, groupID, userID, userID)
	if err != nil {
		return PKStats{}, fmt.Errorf("get pk stats: %w", err)
	}
	defer rows.Close()

	var stats PKStats
	for rows.Next() {
		var winner string
		if err := rows.Scan(&winner); err != nil {
			return PKStats{}, fmt.Errorf("scan pk winner: %w", err)
		}
		stats.Total++
		if winner == userID {
			stats.Wins++
		}
	}
	if err := rows.Err(); err != nil {
		return PKStats{}, fmt.Errorf("get pk stats rows: %w", err)
	}

	stats.Losses = stats.Total - stats.Wins
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total) * 100
	}
	return stats, nil
}

// ListPKRecords returns the most recent duels for a group, newest first.
func (s *SQLiteStore) ListPKRecords(ctx context.Context, groupID string, limit int) ([]PKRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, group_id, user1_id, user1_name, user1_cards_json, user1_score,
	user2_id, user2_name, user2_cards_json, user2_score, winner_id, created_at_ms
FROM pk_records
WHERE group_id = ?
ORDER BY id DESC
LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pk records: %w", err)
	}
	defer rows.Close()

	var out []PKRecord
	for rows.Next() {
		var r PKRecord
		var createdMS int64
		if err := rows.Scan(&r.ID, &r.GroupID, &r.User1ID, &r.User1Name, &r.User1Cards, &r.User1Score,
			&r.User2ID, &r.User2Name, &r.User2Cards, &r.User2Score, &r.WinnerID, &createdMS); err != nil {
			return nil, fmt.Errorf("scan pk record: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pk records rows: %w", err)
	}
	return out, nil
}
