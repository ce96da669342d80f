package store

import (
	"context"
	"errors"
	"testing"
)

func TestLedger_CreditDebit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Credit(ctx, "u1", 2.5); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := s.Debit(ctx, "u1", 1.0); err != nil {
		t.Fatalf("debit: %v", err)
	}

	info, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if info.Balance != 1.5 || info.TotalRecharged != 2.5 || info.TotalSpent != 1.0 {
		t.Fatalf("unexpected ledger state: %+v", info)
	}
}

func TestLedger_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Credit(ctx, "u1", 0.5); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := s.Debit(ctx, "u1", 1.0)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	info, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if info.Balance != 0.5 {
		t.Fatalf("failed debit must not change balance, got %v", info.Balance)
	}
}

func TestLedger_UnknownUserIsZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.GetBalance(ctx, "nobody")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if info.Balance != 0 || info.UserID != "nobody" {
		t.Fatalf("unexpected zero-value balance: %+v", info)
	}
}

func TestOrders_CreateAndSettle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order := RechargeOrder{ID: "ord-1", UserID: "u1", Address: "0xabc"}
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := s.SettleOrder(ctx, "ord-1", 3.0); err != nil {
		t.Fatalf("settle order: %v", err)
	}
	if err := s.SettleOrder(ctx, "ord-1", 3.0); err == nil {
		t.Fatal("settling twice must fail")
	}

	orders, err := s.ListOrders(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Status != OrderSettled || orders[0].Amount != 3.0 {
		t.Fatalf("unexpected orders: %#v", orders)
	}
}

func TestDailyUsage_Bump(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := "2026-08-31"

	for i := 0; i < 3; i++ {
		if err := s.BumpDailyUsage(ctx, "u1", date, "tarot"); err != nil {
			t.Fatalf("bump tarot: %v", err)
		}
	}
	if err := s.BumpDailyUsage(ctx, "u1", date, "chat"); err != nil {
		t.Fatalf("bump chat: %v", err)
	}
	if err := s.BumpDailyUsage(ctx, "u1", date, "bogus"); err == nil {
		t.Fatal("unknown kind must fail")
	}

	usage, err := s.GetDailyUsage(ctx, "u1", date)
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage.TarotCount != 3 || usage.ChatCount != 1 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}
