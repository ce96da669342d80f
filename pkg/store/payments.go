package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetBalance returns the ledger view for userID, zero-valued when the user
// has never recharged or spent.
func (s *SQLiteStore) GetBalance(ctx context.Context, userID string) (BalanceInfo, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, balance, total_recharged, total_spent
FROM balances WHERE user_id = ?`, userID)

	var info BalanceInfo
	if err := row.Scan(&info.UserID, &info.Balance, &info.TotalRecharged, &info.TotalSpent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BalanceInfo{UserID: userID}, nil
		}
		return BalanceInfo{}, fmt.Errorf("get balance: %w", err)
	}
	return info, nil
}

// Credit adds amount to userID's balance and the recharged total.
func (s *SQLiteStore) Credit(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %v", amount)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO balances(user_id, balance, total_recharged, total_spent, updated_at_ms)
VALUES(?, ?, ?, 0, ?)
ON CONFLICT(user_id) DO UPDATE SET
	balance = balances.balance + excluded.balance,
	total_recharged = balances.total_recharged + excluded.total_recharged,
	updated_at_ms = excluded.updated_at_ms`,
		userID, amount, amount, nowMS())
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Debit subtracts amount from userID's balance. The guarded update keeps
// the check and the write in one statement; zero rows affected means the
// balance was too low.
func (s *SQLiteStore) Debit(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %v", amount)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE balances
SET balance = balance - ?, total_spent = total_spent + ?, updated_at_ms = ?
WHERE user_id = ? AND balance >= ?`,
		amount, amount, nowMS(), userID, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// CreateOrder records a pending recharge order.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order RechargeOrder) error {
	if order.Status == "" {
		order.Status = OrderPending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO recharge_orders(id, user_id, address, status, amount, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Address, order.Status, order.Amount, nowMS())
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// SettleOrder marks an order settled with the credited amount.
func (s *SQLiteStore) SettleOrder(ctx context.Context, orderID string, amount float64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE recharge_orders SET status = ?, amount = ? WHERE id = ? AND status = ?`,
		OrderSettled, amount, orderID, OrderPending)
	if err != nil {
		return fmt.Errorf("settle order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle order rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("settle order %s: not found or not pending", orderID)
	}
	return nil
}

// ListOrders returns userID's orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, userID string, limit int) ([]RechargeOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, address, status, amount, created_at_ms
FROM recharge_orders
WHERE user_id = ?
ORDER BY created_at_ms DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []RechargeOrder
	for rows.Next() {
		var o RechargeOrder
		var createdMS int64
		if err := rows.Scan(&o.ID, &o.UserID, &o.Address, &o.Status, &o.Amount, &createdMS); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders rows: %w", err)
	}
	return out, nil
}

// GetDailyUsage returns the quota counters for userID on date.
func (s *SQLiteStore) GetDailyUsage(ctx context.Context, userID, date string) (DailyUsage, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, usage_date, tarot_count, chat_count
FROM daily_usage WHERE user_id = ? AND usage_date = ?`, userID, date)

	var u DailyUsage
	if err := row.Scan(&u.UserID, &u.Date, &u.TarotCount, &u.ChatCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DailyUsage{UserID: userID, Date: date}, nil
		}
		return DailyUsage{}, fmt.Errorf("get daily usage: %w", err)
	}
	return u, nil
}

// BumpDailyUsage increments one quota counter ("tarot" or "chat").
func (s *SQLiteStore) BumpDailyUsage(ctx context.Context, userID, date, kind string) error {
	var col string
	switch kind {
	case "tarot":
		col = "tarot_count"
	case "chat":
		col = "chat_count"
	default:
		return fmt.Errorf("unknown usage kind: %s", kind)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO daily_usage(user_id, usage_date, %[1]s)
VALUES(?, ?, 1)
ON CONFLICT(user_id, usage_date) DO UPDATE SET %[1]s = %[1]s + 1`, col), userID, date)
	if err != nil {
		return fmt.Errorf("bump daily usage: %w", err)
	}
	return nil
}
