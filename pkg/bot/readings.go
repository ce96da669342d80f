package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/payments"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
	"github.com/cyberFlowTech/wanqing/pkg/tarot"
)

const interpretationPrompt = `你是塔罗牌解读师晚晴，温柔、专业、不故弄玄虚。
用户抽了一个三张牌阵（过去/现在/未来）。请围绕用户的问题解读牌面：
先简短点出每张牌的含义，再给出一段整体的建议。
语气亲切自然，适度用表情符号，总长度控制在 300 字以内。
记住：塔罗揭示趋势，决定权在用户自己。`

// cmdTarot is the full three-card reading. It consumes the daily free quota
// or charges the reading price.
func (b *Bot) cmdTarot(ctx context.Context, msg bus.InboundMessage, question string) string {
	if question == "" {
		return "想问什么呢？在 /tarot 后面写上你的问题~\n\n比如：/tarot 我应该换工作吗 🎴"
	}
	userID := userKey(msg)

	charge, err := b.payments.Authorize(ctx, userID, payments.KindTarot, time.Now())
	if err != nil {
		if errors.Is(err, payments.ErrInsufficientBalance) {
			return fmt.Sprintf("今天的免费占卜用完啦~\n\n超额占卜 %.2f USDT/次，发 /recharge 充值就能继续 💎",
				b.cfg.Payments.PriceTarotReading)
		}
		logger.ErrorCF("bot", "tarot authorize failed", map[string]any{"error": err.Error()})
		return "呃，出了点小状况，稍后再试试~"
	}

	spread := b.deck.ThreeCardSpread()
	interpretation := b.interpretSpread(ctx, question, spread)

	// Persist the reading; a storage hiccup must not eat the answer the
	// user already paid for.
	cardsJSON := encodeSpread(spread)
	if err := b.store.SaveReading(ctx, userID, question, cardsJSON, interpretation, b.cfg.Tarot.MaxReadings); err != nil {
		logger.ErrorCF("bot", "save reading failed", map[string]any{"error": err.Error()})
	}

	if msg.ChatType == bus.ChatTypeGroup {
		if err := b.groups.RecordResult(ctx, msg.ChatID, userID, displayName(msg), spread, time.Now()); err != nil {
			logger.WarnCF("bot", "ranking update failed", map[string]any{"error": err.Error()})
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎴 塔罗占卜\n%s\n\n", divider)
	fmt.Fprintf(&sb, "🔮 问题：%s\n\n", question)
	for _, card := range spread {
		fmt.Fprintf(&sb, "• %s：%s\n  %s\n", card.Position, card.FullName(), card.Meaning)
	}
	fmt.Fprintf(&sb, "\n%s\n\n%s", divider, interpretation)
	if !charge.Free {
		fmt.Fprintf(&sb, "\n\n💎 本次占卜消耗 %.2f USDT", charge.Amount)
	}
	if msg.ChatType == bus.ChatTypeGroup {
		sb.WriteString("\n\n你的结果已经上榜啦，发 /ranking 看看排名 🏆")
	}
	return sb.String()
}

// cmdFortune is the quick one-card guidance. Free and unlimited.
func (b *Bot) cmdFortune(ctx context.Context, msg bus.InboundMessage, question string) string {
	if question == "" {
		question = "我今天运势如何？"
	}
	card := b.deck.Draw()

	return fmt.Sprintf("🔮 快速指引\n%s\n\n问题：%s\n\n🎴 %s\n%s\n\n%s",
		divider, question, card.FullName(), card.Meaning, quickAdvice(card))
}

// cmdLuck draws the day's single card. Free and unlimited.
func (b *Bot) cmdLuck(msg bus.InboundMessage) string {
	card := b.deck.Draw()

	mood := "今天的能量很不错，放心去做想做的事吧~ ✨"
	if !card.Upright() {
		mood = "今天适合慢一点，给自己留些余地~ 🌙"
	}
	return fmt.Sprintf("🌅 今日运势\n%s\n\n🎴 %s\n%s\n\n%s\n\n想细问什么？发 /tarot 加上问题~",
		divider, card.FullName(), card.Meaning, mood)
}

func (b *Bot) cmdHistory(ctx context.Context, msg bus.InboundMessage) string {
	readings, err := b.store.RecentReadings(ctx, userKey(msg), 5)
	if err != nil {
		logger.ErrorCF("bot", "list readings failed", map[string]any{"error": err.Error()})
		return "翻记录的时候出了点问题，稍后再试试~"
	}
	if len(readings) == 0 {
		return "还没有占卜记录呢~\n\n发 /tarot 加上问题来第一次占卜吧 🎴"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 占卜记录\n%s\n\n", divider)
	for i, r := range readings {
		fmt.Fprintf(&sb, "%d. %s\n   问题：%s\n", i+1, r.CreatedAt.Format("2006-01-02 15:04"), r.Question)
		for _, name := range decodeSpreadNames(r.CardsJSON) {
			fmt.Fprintf(&sb, "   🎴 %s\n", name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("想聊聊其中哪一次？直接告诉我就好~")
	return sb.String()
}

// interpretSpread asks the model for a persona reading of the spread,
// falling back to the raw card meanings when the provider is unavailable.
func (b *Bot) interpretSpread(ctx context.Context, question string, spread []tarot.DrawnCard) string {
	if b.provider == nil {
		return fallbackInterpretation(spread)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "问题：%s\n牌阵：\n", question)
	for _, card := range spread {
		fmt.Fprintf(&sb, "%s：%s（%s）\n", card.Position, card.FullName(), card.Meaning)
	}

	resp, err := b.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: interpretationPrompt},
		{Role: "user", Content: sb.String()},
	}, providers.Options{
		MaxTokens:   b.cfg.Provider.MaxTokens,
		Temperature: b.cfg.Provider.Temperature,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			logger.WarnCF("bot", "interpretation failed, using card meanings", map[string]any{
				"error": err.Error(),
			})
		}
		return fallbackInterpretation(spread)
	}
	return strings.TrimSpace(resp.Content)
}

func fallbackInterpretation(spread []tarot.DrawnCard) string {
	upright := tarot.UprightCount(spread)
	switch {
	case upright == 3:
		return "三张牌都是正位，能量很顺。顺着当下的方向走就好，别犹豫太多~ ✨"
	case upright >= 1:
		return "牌面有起有伏。把握住正位指向的那部分，逆位提醒的地方放慢一点，整体还是向好的~"
	default:
		return "三张都是逆位，先别急着下决定。给自己一点时间沉淀，等能量回转~ 🌙"
	}
}

func quickAdvice(card tarot.DrawnCard) string {
	if card.Upright() {
		return "牌面是正位，顺着直觉走，今天适合行动~ ✨"
	}
	return "牌面是逆位，提醒你换个角度想想，不必急于求成~ 🌙"
}

func encodeSpread(spread []tarot.DrawnCard) string {
	type cardEntry struct {
		Position string `json:"position"`
		Card     string `json:"card"`
		Meaning  string `json:"meaning"`
	}
	entries := make([]cardEntry, len(spread))
	for i, card := range spread {
		entries[i] = cardEntry{Position: card.Position, Card: card.FullName(), Meaning: card.Meaning}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeSpreadNames(cardsJSON string) []string {
	var entries []struct {
		Position string `json:"position"`
		Card     string `json:"card"`
	}
	if err := json.Unmarshal([]byte(cardsJSON), &entries); err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Position != "" {
			names = append(names, e.Position+"："+e.Card)
			continue
		}
		names = append(names, e.Card)
	}
	return names
}
