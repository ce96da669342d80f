package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

const groupOnlyHint = "这个要在群里用哦~ 把我拉进群组就行 😊"

func (b *Bot) cmdGroupFortune(ctx context.Context, msg bus.InboundMessage) string {
	if msg.ChatType != bus.ChatTypeGroup {
		return groupOnlyHint
	}

	fortune, err := b.groups.DailyFortune(ctx, msg.ChatID, time.Now())
	if err != nil {
		logger.ErrorCF("bot", "group fortune failed", map[string]any{"error": err.Error()})
		return "今天的运势抽不出来……稍后再试试~"
	}
	ranking, err := b.groups.Ranking(ctx, msg.ChatID, time.Now())
	if err != nil {
		logger.WarnCF("bot", "ranking count failed", map[string]any{"error": err.Error()})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🌅 今日群运势\n%s\n\n", divider)
	fmt.Fprintf(&sb, "📅 %s\n\n", fortune.Date)
	fmt.Fprintf(&sb, "🔮 今日塔罗气象\n   主牌：%s\n   副牌：%s\n\n", fortune.MainCard.FullName(), fortune.SubCard.FullName())
	fmt.Fprintf(&sb, "📊 运势指数：%s %d/5\n\n", strings.Repeat("⭐", fortune.Stars), fortune.Stars)
	fmt.Fprintf(&sb, "💭 %s\n\n%s\n\n✅ 今日适合\n", fortune.Summary, divider)
	for _, activity := range fortune.Suitable {
		fmt.Fprintf(&sb, "   • %s\n", activity)
	}
	sb.WriteString("\n❌ 今日留心\n")
	for _, activity := range fortune.Avoid {
		fmt.Fprintf(&sb, "   • %s\n", activity)
	}
	fmt.Fprintf(&sb, "\n%s\n\n👥 已有 %d 人查看了今天的运势\n\n", divider, len(ranking))
	sb.WriteString("想看自己的运势？发 /tarot 加上问题~\n想看排行？发 /ranking 🏆")
	return sb.String()
}

func (b *Bot) cmdRanking(ctx context.Context, msg bus.InboundMessage) string {
	if msg.ChatType != bus.ChatTypeGroup {
		return "这个要在群里用哦~"
	}

	ranking, err := b.groups.Ranking(ctx, msg.ChatID, time.Now())
	if err != nil {
		logger.ErrorCF("bot", "ranking failed", map[string]any{"error": err.Error()})
		return "排行榜翻不开……稍后再试试~"
	}
	if len(ranking) == 0 {
		return "今天还没有人占卜呢~\n\n发 /tarot 加上问题来一次，你的结果会自动上榜 🏆"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 今日运势排行榜\n%s\n\n", divider)
	fmt.Fprintf(&sb, "📅 %s\n\n%s\n\n", time.Now().Format("2006年01月02日"), divider)

	medals := []string{"👑", "🥈", "🥉"}
	for idx, record := range ranking {
		if idx >= 10 {
			break
		}
		medal := fmt.Sprintf("%d.", idx+1)
		if idx < len(medals) {
			medal = medals[idx]
		}
		fmt.Fprintf(&sb, "%s %s - %d张正位\n\n", medal, record.UserName, record.PositiveCount)
	}

	fmt.Fprintf(&sb, "%s\n\n📊 共 %d 人参与\n\n发 /tarot 加上问题也来参与吧~", divider, len(ranking))
	return sb.String()
}

func (b *Bot) cmdPK(ctx context.Context, msg bus.InboundMessage) string {
	if msg.ChatType != bus.ChatTypeGroup {
		return "PK 要在群里玩哦~"
	}
	if msg.ReplyToID == "" {
		return "⚔️ 塔罗对决\n\n回复你想挑战的人的消息，然后发 /pk\n\n双方会同时抽三张牌，比拼牌面能量~ 🎴"
	}
	if msg.ReplyToID == msg.SenderID {
		return "不能和自己对战哦~ 😅"
	}

	opponentName := msg.Metadata["reply_to_name"]
	if opponentName == "" {
		opponentName = "对手"
	}

	result, err := b.groups.Battle(ctx, msg.ChatID, msg.SenderID, displayName(msg), msg.ReplyToID, opponentName)
	if err != nil {
		logger.ErrorCF("bot", "battle failed", map[string]any{"error": err.Error()})
		return "对决进行不下去了……稍后再试试~"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚔️ 塔罗对决结果\n%s\n\n", divider)
	fmt.Fprintf(&sb, "👤 %s VS %s\n\n%s\n\n", result.Challenger.Name, result.Opponent.Name, divider)

	fmt.Fprintf(&sb, "🎴 %s 的牌：\n", result.Challenger.Name)
	for _, card := range result.Challenger.Spread {
		fmt.Fprintf(&sb, "   • %s\n", card.FullName())
	}
	fmt.Fprintf(&sb, "💪 能量值: %d分\n\n", result.Challenger.Score)

	fmt.Fprintf(&sb, "🎴 %s 的牌：\n", result.Opponent.Name)
	for _, card := range result.Opponent.Spread {
		fmt.Fprintf(&sb, "   • %s\n", card.FullName())
	}
	fmt.Fprintf(&sb, "💪 能量值: %d分\n\n%s\n\n", result.Opponent.Score, divider)

	if result.WinnerID != "" {
		fmt.Fprintf(&sb, "🏆 胜者：%s\n\n", result.WinnerName)
	} else {
		sb.WriteString("🤝 平局！势均力敌！\n\n")
	}
	fmt.Fprintf(&sb, "🔮 晚晴点评\n%s", result.Comment)
	return sb.String()
}
