package store

import (
	"context"
	"fmt"
)

// PruneDailyRows deletes date-keyed rows strictly older than cutoffDate
// ("2006-01-02"). Group fortunes, rankings and quota counters only matter
// for the day they describe; everything older is dead weight the nightly
// maintenance job clears out. Returns the number of rows removed.
func (s *SQLiteStore) PruneDailyRows(ctx context.Context, cutoffDate string) (int64, error) {
	var total int64
	for _, stmt := range []struct {
		query string
		label string
	}{
		{`DELETE FROM group_fortunes WHERE fortune_date < ?`, "prune group fortunes"},
		{`DELETE FROM group_rankings WHERE ranking_date < ?`, "prune rankings"},
		{`DELETE FROM daily_usage WHERE usage_date < ?`, "prune daily usage"},
	} {
		res, err := s.db.ExecContext(ctx, stmt.query, cutoffDate)
		if err != nil {
			return total, fmt.Errorf("%s: %w", stmt.label, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
