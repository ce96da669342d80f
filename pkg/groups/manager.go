// Package groups implements the group-chat play features: the shared daily
// fortune, the divination leaderboard and tarot duels.
package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/store"
	"github.com/cyberFlowTech/wanqing/pkg/tarot"
)

const dayFormat = "2006-01-02"

// Store is the persistence the group features need; *store.SQLiteStore
// satisfies it.
type Store interface {
	GetGroupFortune(ctx context.Context, groupID, date string) (string, error)
	SetGroupFortune(ctx context.Context, groupID, date, fortuneJSON string) error
	UpsertRanking(ctx context.Context, groupID, date string, entry store.RankingEntry) error
	GetRanking(ctx context.Context, groupID, date string) ([]store.RankingEntry, error)
	AddPKRecord(ctx context.Context, rec store.PKRecord) error
	GetPKStats(ctx context.Context, groupID, userID string) (store.PKStats, error)
}

type Manager struct {
	store Store
	deck  *tarot.Deck
}

func NewManager(st Store, deck *tarot.Deck) *Manager {
	return &Manager{store: st, deck: deck}
}

// DailyFortune returns the group's fortune for today, generating and
// persisting it on the first request of the day. Everyone in the group sees
// the same cards until midnight.
func (m *Manager) DailyFortune(ctx context.Context, groupID string, now time.Time) (tarot.GroupFortune, error) {
	date := now.Format(dayFormat)

	raw, err := m.store.GetGroupFortune(ctx, groupID, date)
	if err != nil {
		return tarot.GroupFortune{}, err
	}
	if raw != "" {
		fortune, err := tarot.DecodeFortune(raw)
		if err == nil {
			return fortune, nil
		}
		// Unreadable row, regenerate below.
		logger.WarnCF("groups", "stored fortune unreadable, regenerating", map[string]any{
			"group_id": groupID,
			"error":    err.Error(),
		})
	}

	fortune := m.deck.GenerateGroupFortune(now)
	encoded, err := tarot.EncodeFortune(fortune)
	if err != nil {
		return tarot.GroupFortune{}, fmt.Errorf("encode group fortune: %w", err)
	}
	if err := m.store.SetGroupFortune(ctx, groupID, date, encoded); err != nil {
		return tarot.GroupFortune{}, err
	}
	return fortune, nil
}

// RecordResult puts a user's spread on today's leaderboard. A second
// divination the same day replaces the first.
func (m *Manager) RecordResult(ctx context.Context, groupID, userID, userName string, spread []tarot.DrawnCard, now time.Time) error {
	names := make([]string, len(spread))
	for i, card := range spread {
		names[i] = card.FullName()
	}
	cardsJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode ranking cards: %w", err)
	}

	return m.store.UpsertRanking(ctx, groupID, now.Format(dayFormat), store.RankingEntry{
		UserID:        userID,
		UserName:      userName,
		PositiveCount: tarot.UprightCount(spread),
		CardsJSON:     string(cardsJSON),
	})
}

// Ranking returns today's leaderboard for a group, best first.
func (m *Manager) Ranking(ctx context.Context, groupID string, now time.Time) ([]store.RankingEntry, error) {
	return m.store.GetRanking(ctx, groupID, now.Format(dayFormat))
}

// Combatant is one side of a duel.
type Combatant struct {
	UserID string
	Name   string
	Spread []tarot.DrawnCard
	Score  int
}

// BattleResult is the outcome of one duel. WinnerID is empty on a draw.
type BattleResult struct {
	Challenger Combatant
	Opponent   Combatant
	WinnerID   string
	WinnerName string
	Comment    string
}

// Battle runs a duel: both sides draw a three-card spread, upright cards
// carry double energy, higher total wins. The record is persisted with the
// group's recent duels.
func (m *Manager) Battle(ctx context.Context, groupID, challengerID, challengerName, opponentID, opponentName string) (BattleResult, error) {
	if challengerID == opponentID {
		return BattleResult{}, fmt.Errorf("battle: cannot duel yourself")
	}

	result := BattleResult{
		Challenger: Combatant{UserID: challengerID, Name: challengerName, Spread: m.deck.ThreeCardSpread()},
		Opponent:   Combatant{UserID: opponentID, Name: opponentName, Spread: m.deck.ThreeCardSpread()},
	}
	result.Challenger.Score = tarot.Score(result.Challenger.Spread)
	result.Opponent.Score = tarot.Score(result.Opponent.Spread)

	switch {
	case result.Challenger.Score > result.Opponent.Score:
		result.WinnerID = challengerID
		result.WinnerName = challengerName
	case result.Opponent.Score > result.Challenger.Score:
		result.WinnerID = opponentID
		result.WinnerName = opponentName
	}
	result.Comment = battleComment(result)

	winnerID := result.WinnerID
	if winnerID == "" {
		winnerID = "draw"
	}
	rec := store.PKRecord{
		GroupID:    groupID,
		User1ID:    challengerID,
		User1Name:  challengerName,
		User1Cards: spreadJSON(result.Challenger.Spread),
		User1Score: result.Challenger.Score,
		User2ID:    opponentID,
		User2Name:  opponentName,
		User2Cards: spreadJSON(result.Opponent.Spread),
		User2Score: result.Opponent.Score,
		WinnerID:   winnerID,
	}
	if err := m.store.AddPKRecord(ctx, rec); err != nil {
		return BattleResult{}, err
	}

	logger.InfoCF("groups", "duel finished", map[string]any{
		"group_id": groupID,
		"winner":   winnerID,
		"scores":   fmt.Sprintf("%d:%d", result.Challenger.Score, result.Opponent.Score),
	})
	return result, nil
}

func battleComment(r BattleResult) string {
	if r.WinnerID == "" {
		return "双方能量完全一致，这可是很少见的巧合呢~ 🌙"
	}
	diff := r.Challenger.Score - r.Opponent.Score
	if diff < 0 {
		diff = -diff
	}
	if diff > 20 {
		return fmt.Sprintf("%s 的牌阵能量远超对手，今天运势正盛呢~ ✨", r.WinnerName)
	}
	return fmt.Sprintf("%s 略胜一筹，不过双方实力很接近，精彩的对决~", r.WinnerName)
}

func spreadJSON(spread []tarot.DrawnCard) string {
	names := make([]string, len(spread))
	for i, card := range spread {
		names[i] = card.FullName()
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// Stats summarizes a user's duel record within one group.
func (m *Manager) Stats(ctx context.Context, groupID, userID string) (store.PKStats, error) {
	return m.store.GetPKStats(ctx, groupID, userID)
}
