// Package payments implements the USDT ledger around the bot's paid
// features: daily free quotas, per-use charging, recharge orders and
// balance reporting.
package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/store"
)

const dayFormat = "2006-01-02"

// Usage kinds, matching the daily_usage counters.
const (
	KindTarot = "tarot"
	KindChat  = "chat"
)

// ErrInsufficientBalance mirrors the store sentinel so callers only import
// this package.
var ErrInsufficientBalance = store.ErrInsufficientBalance

// Store is the persistence the payment flows need; *store.SQLiteStore
// satisfies it.
type Store interface {
	GetBalance(ctx context.Context, userID string) (store.BalanceInfo, error)
	Credit(ctx context.Context, userID string, amount float64) error
	Debit(ctx context.Context, userID string, amount float64) error
	CreateOrder(ctx context.Context, order store.RechargeOrder) error
	SettleOrder(ctx context.Context, orderID string, amount float64) error
	ListOrders(ctx context.Context, userID string, limit int) ([]store.RechargeOrder, error)
	GetDailyUsage(ctx context.Context, userID, date string) (store.DailyUsage, error)
	BumpDailyUsage(ctx context.Context, userID, date, kind string) error
}

// Pricing fixes the per-use prices and daily free quotas at startup.
type Pricing struct {
	TarotReading   float64
	TarotDetail    float64
	AIChat         float64
	FreeTarotDaily int
	FreeChatDaily  int
}

type Manager struct {
	store   Store
	pricing Pricing
}

func NewManager(st Store, pricing Pricing) *Manager {
	return &Manager{store: st, pricing: pricing}
}

// Charge is the outcome of one authorization: either a free-quota use or a
// paid one with the debited amount.
type Charge struct {
	Free   bool
	Amount float64
}

// Authorize clears one use of a paid feature. Uses within the daily free
// quota just bump the counter; past the quota the price is debited from the
// balance. ErrInsufficientBalance means the user must recharge first.
func (m *Manager) Authorize(ctx context.Context, userID, kind string, now time.Time) (Charge, error) {
	date := now.Format(dayFormat)

	usage, err := m.store.GetDailyUsage(ctx, userID, date)
	if err != nil {
		return Charge{}, err
	}

	var used, quota int
	var price float64
	switch kind {
	case KindTarot:
		used, quota, price = usage.TarotCount, m.pricing.FreeTarotDaily, m.pricing.TarotReading
	case KindChat:
		used, quota, price = usage.ChatCount, m.pricing.FreeChatDaily, m.pricing.AIChat
	default:
		return Charge{}, fmt.Errorf("authorize: unknown usage kind %q", kind)
	}

	if used < quota {
		if err := m.store.BumpDailyUsage(ctx, userID, date, kind); err != nil {
			return Charge{}, err
		}
		return Charge{Free: true}, nil
	}

	if err := m.store.Debit(ctx, userID, price); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return Charge{}, ErrInsufficientBalance
		}
		return Charge{}, err
	}
	if err := m.store.BumpDailyUsage(ctx, userID, date, kind); err != nil {
		// The debit already landed; the counter being one short only
		// costs the user a cheaper next use.
		logger.WarnCF("payments", "usage bump failed after debit", map[string]any{
			"user_id": userID,
			"kind":    kind,
			"error":   err.Error(),
		})
	}
	return Charge{Amount: price}, nil
}

// ChargeDetail debits the deep-reading price. There is no free quota for
// deep readings.
func (m *Manager) ChargeDetail(ctx context.Context, userID string) (Charge, error) {
	if err := m.store.Debit(ctx, userID, m.pricing.TarotDetail); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return Charge{}, ErrInsufficientBalance
		}
		return Charge{}, err
	}
	return Charge{Amount: m.pricing.TarotDetail}, nil
}

// Summary is the balance view shown by /balance.
type Summary struct {
	Balance        store.BalanceInfo
	TarotRemaining int
	ChatRemaining  int
	Pricing        Pricing
}

// Balance returns the ledger and today's remaining free quotas.
func (m *Manager) Balance(ctx context.Context, userID string, now time.Time) (Summary, error) {
	info, err := m.store.GetBalance(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	usage, err := m.store.GetDailyUsage(ctx, userID, now.Format(dayFormat))
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Balance:        info,
		TarotRemaining: m.pricing.FreeTarotDaily - usage.TarotCount,
		ChatRemaining:  m.pricing.FreeChatDaily - usage.ChatCount,
		Pricing:        m.pricing,
	}
	if s.TarotRemaining < 0 {
		s.TarotRemaining = 0
	}
	if s.ChatRemaining < 0 {
		s.ChatRemaining = 0
	}
	return s, nil
}

// CreateRechargeOrder opens a pending order against the user's deposit
// address and returns it.
func (m *Manager) CreateRechargeOrder(ctx context.Context, userID string) (store.RechargeOrder, error) {
	order := store.RechargeOrder{
		ID:      uuid.NewString(),
		UserID:  userID,
		Address: DepositAddress(userID),
		Status:  store.OrderPending,
	}
	if err := m.store.CreateOrder(ctx, order); err != nil {
		return store.RechargeOrder{}, err
	}
	logger.InfoCF("payments", "recharge order created", map[string]any{
		"user_id":  userID,
		"order_id": order.ID,
	})
	return order, nil
}

// SettleRecharge marks the order settled and credits the balance. Admin
// flow; the on-chain watcher is out of scope, so a human confirms receipt.
func (m *Manager) SettleRecharge(ctx context.Context, orderID, userID string, amount float64) error {
	if err := m.store.SettleOrder(ctx, orderID, amount); err != nil {
		return err
	}
	if err := m.store.Credit(ctx, userID, amount); err != nil {
		return fmt.Errorf("settle recharge credit: %w", err)
	}
	logger.InfoCF("payments", "recharge settled", map[string]any{
		"user_id":  userID,
		"order_id": orderID,
		"amount":   amount,
	})
	return nil
}

// Orders lists the user's recent recharge orders, newest first.
func (m *Manager) Orders(ctx context.Context, userID string, limit int) ([]store.RechargeOrder, error) {
	return m.store.ListOrders(ctx, userID, limit)
}

// Credit adds funds directly (admin /topup).
func (m *Manager) Credit(ctx context.Context, userID string, amount float64) error {
	return m.store.Credit(ctx, userID, amount)
}

// DepositAddress derives the user's stable TRON-style deposit address.
// Deterministic so /recharge always shows the same address for one user.
func DepositAddress(userID string) string {
	sum := sha256.Sum256([]byte("wanqing-deposit:" + userID))
	return "T" + strings.ToUpper(hex.EncodeToString(sum[:]))[:33]
}
