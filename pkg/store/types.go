package store

import "time"

// Turn is one message (user or assistant) in a conversation. Turns are
// immutable once written; the short-term log deletes them only through
// retention trimming or explicit erasure.
type Turn struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// BufferedTurn lives in the conversation buffer awaiting extraction.
// Insertion-ordered within a user's partition; destroyed atomically with
// all sibling buffered turns during a drain.
type BufferedTurn struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// ExtractionRecord tracks extraction bookkeeping per user. Its existence
// implies at least one successful drain has occurred.
type ExtractionRecord struct {
	UserID         string
	LastExtraction time.Time
	Count          int
}

// Reading is one persisted tarot reading.
type Reading struct {
	ID             int64
	UserID         string
	Question       string
	CardsJSON      string
	Interpretation string
	CreatedAt      time.Time
}

// RankingEntry is one user's row in a group's daily ranking.
type RankingEntry struct {
	UserID        string
	UserName      string
	PositiveCount int
	CardsJSON     string
}

// PKRecord is one stored card duel between two group members.
type PKRecord struct {
	ID         int64
	GroupID    string
	User1ID    string
	User1Name  string
	User1Cards string
	User1Score int
	User2ID    string
	User2Name  string
	User2Cards string
	User2Score int
	WinnerID   string
	CreatedAt  time.Time
}

// PKStats summarizes a user's duel history inside one group.
type PKStats struct {
	Total   int
	Wins    int
	Losses  int
	WinRate float64
}

// BalanceInfo is the ledger view for one user.
type BalanceInfo struct {
	UserID         string
	Balance        float64
	TotalRecharged float64
	TotalSpent     float64
}

// RechargeOrder is a pending or settled top-up.
type RechargeOrder struct {
	ID        string
	UserID    string
	Address   string
	Status    string
	Amount    float64
	CreatedAt time.Time
}

// Recharge order statuses.
const (
	OrderPending = "pending"
	OrderSettled = "settled"
)

// DailyUsage counts free-quota consumption for one user on one day.
type DailyUsage struct {
	UserID     string
	Date       string
	TarotCount int
	ChatCount  int
}
