package payments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/store"
)

func newTestManager(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "wanqing.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	pricing := Pricing{
		TarotReading:   1.0,
		TarotDetail:    0.5,
		AIChat:         0.1,
		FreeTarotDaily: 2,
		FreeChatDaily:  3,
	}
	return NewManager(st, pricing), st
}

func TestAuthorize_FreeQuotaThenPaid(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	for i := 0; i < 2; i++ {
		charge, err := m.Authorize(ctx, "u1", KindTarot, now)
		if err != nil {
			t.Fatalf("free use %d: %v", i, err)
		}
		if !charge.Free {
			t.Fatalf("use %d should be free", i)
		}
	}

	// Quota exhausted, no balance.
	_, err := m.Authorize(ctx, "u1", KindTarot, now)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := st.Credit(ctx, "u1", 5.0); err != nil {
		t.Fatalf("credit: %v", err)
	}
	charge, err := m.Authorize(ctx, "u1", KindTarot, now)
	if err != nil {
		t.Fatalf("paid use: %v", err)
	}
	if charge.Free || charge.Amount != 1.0 {
		t.Fatalf("expected paid charge of 1.0, got %+v", charge)
	}

	info, err := st.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if info.Balance != 4.0 {
		t.Fatalf("balance = %v, want 4.0", info.Balance)
	}
}

func TestAuthorize_QuotaResetsNextDay(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	now := time.Date(2026, 5, 1, 23, 0, 0, 0, time.Local)

	for i := 0; i < 2; i++ {
		if _, err := m.Authorize(ctx, "u1", KindTarot, now); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	charge, err := m.Authorize(ctx, "u1", KindTarot, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("next-day use: %v", err)
	}
	if !charge.Free {
		t.Fatal("quota must reset on the new day")
	}
}

func TestBalanceSummary(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	if err := st.Credit(ctx, "u1", 2.5); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := m.Authorize(ctx, "u1", KindChat, now); err != nil {
		t.Fatalf("authorize chat: %v", err)
	}

	s, err := m.Balance(ctx, "u1", now)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if s.Balance.Balance != 2.5 {
		t.Fatalf("balance = %v, want 2.5", s.Balance.Balance)
	}
	if s.TarotRemaining != 2 || s.ChatRemaining != 2 {
		t.Fatalf("remaining = %d/%d, want 2/2", s.TarotRemaining, s.ChatRemaining)
	}
}

func TestChargeDetail(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	if _, err := m.ChargeDetail(ctx, "u1"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := st.Credit(ctx, "u1", 1.0); err != nil {
		t.Fatalf("credit: %v", err)
	}
	charge, err := m.ChargeDetail(ctx, "u1")
	if err != nil {
		t.Fatalf("charge detail: %v", err)
	}
	if charge.Amount != 0.5 {
		t.Fatalf("amount = %v, want 0.5", charge.Amount)
	}
}

func TestRechargeLifecycle(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	order, err := m.CreateRechargeOrder(ctx, "u1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID == "" || order.Status != store.OrderPending {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.Address != DepositAddress("u1") {
		t.Fatal("order must carry the user's deposit address")
	}

	if err := m.SettleRecharge(ctx, order.ID, "u1", 10.0); err != nil {
		t.Fatalf("settle: %v", err)
	}
	info, err := st.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if info.Balance != 10.0 || info.TotalRecharged != 10.0 {
		t.Fatalf("ledger = %+v, want 10.0 credited", info)
	}

	// Double settlement is rejected.
	if err := m.SettleRecharge(ctx, order.ID, "u1", 10.0); err == nil {
		t.Fatal("settling a settled order must fail")
	}

	orders, err := m.Orders(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Status != store.OrderSettled {
		t.Fatalf("unexpected orders %+v", orders)
	}
}

func TestDepositAddress_Stable(t *testing.T) {
	a := DepositAddress("u1")
	if a != DepositAddress("u1") {
		t.Fatal("address must be deterministic per user")
	}
	if a == DepositAddress("u2") {
		t.Fatal("distinct users must get distinct addresses")
	}
	if len(a) != 34 || a[0] != 'T' {
		t.Fatalf("unexpected address shape %q", a)
	}
}
