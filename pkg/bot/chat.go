package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/payments"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
)

const personaPrompt = `你是晚晴，一名温柔而专业的塔罗牌解读师。
你平时帮大家看牌面、聊困惑，语气亲切自然，像一个值得信赖的朋友。
你会参考下面提供的「关于这位用户的记忆」和「占卜历史」，让回应更贴心，
但引用时要自然，不要机械地罗列。
不替用户做决定，只帮用户看清选择。回复控制在 200 字以内，适度用表情符号。`

// handleChat runs the persona conversation flow: charge quota, record the
// user turn, build the prompt from memories and recent history, call the
// model, record the reply.
func (b *Bot) handleChat(ctx context.Context, msg bus.InboundMessage) string {
	userID := userKey(msg)

	_, err := b.payments.Authorize(ctx, userID, payments.KindChat, time.Now())
	if err != nil {
		if errors.Is(err, payments.ErrInsufficientBalance) {
			return fmt.Sprintf("今天的免费聊天用完啦~\n\n超额聊天 %.2f USDT/次，发 /recharge 充值就能继续 💎",
				b.cfg.Payments.PriceAIChat)
		}
		logger.ErrorCF("bot", "chat authorize failed", map[string]any{"error": err.Error()})
		return "呃，出了点小状况，稍后再试试~"
	}

	// Memory bookkeeping never blocks the conversation: a failed append
	// means one message missing from future memory, nothing more.
	if err := b.memory.RecordTurn(ctx, userID, "user", msg.Content); err != nil {
		logger.WarnCF("bot", "record user turn failed", map[string]any{"error": err.Error()})
	}

	reply, err := b.converse(ctx, userID, msg.Content)
	if err != nil {
		logger.ErrorCF("bot", "chat completion failed", map[string]any{"error": err.Error()})
		return "我这边走神了一下……再说一遍好吗？🌙"
	}

	if err := b.memory.RecordTurn(ctx, userID, "assistant", reply); err != nil {
		logger.WarnCF("bot", "record assistant turn failed", map[string]any{"error": err.Error()})
	}
	return reply
}

func (b *Bot) converse(ctx context.Context, userID, content string) (string, error) {
	if b.provider == nil {
		return "", fmt.Errorf("chat provider not configured")
	}

	messages := []providers.Message{{Role: "system", Content: personaPrompt}}
	if note := b.buildContextNote(ctx, userID); note != "" {
		messages = append(messages, providers.Message{Role: "system", Content: note})
	}

	// Recent history excludes the turn just recorded for this message; it
	// goes in as the live user message below.
	history, err := b.memory.Recent(ctx, userID, b.cfg.Memory.MaxTurns)
	if err != nil {
		logger.WarnCF("bot", "load history failed", map[string]any{"error": err.Error()})
	}
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Content == content {
		history = history[:n-1]
	}
	for _, turn := range history {
		messages = append(messages, providers.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: content})

	resp, err := b.provider.Chat(ctx, messages, providers.Options{
		MaxTokens:   b.cfg.Provider.MaxTokens,
		Temperature: b.cfg.Provider.Temperature,
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("empty completion")
	}
	return reply, nil
}

// buildContextNote assembles the long-term memory and reading history block
// injected as a second system message.
func (b *Bot) buildContextNote(ctx context.Context, userID string) string {
	var sb strings.Builder

	memories, err := b.store.ListMemories(ctx, userID, 20)
	if err != nil {
		logger.WarnCF("bot", "load memories failed", map[string]any{"error": err.Error()})
	}
	if len(memories) > 0 {
		sb.WriteString("【关于这位用户的记忆】\n")
		for _, m := range memories {
			fmt.Fprintf(&sb, "- %s\n", m.Content)
		}
	}

	readings, err := b.store.RecentReadings(ctx, userID, 3)
	if err != nil {
		logger.WarnCF("bot", "load readings failed", map[string]any{"error": err.Error()})
	}
	if len(readings) > 0 {
		sb.WriteString("【用户的占卜历史】\n")
		for _, r := range readings {
			fmt.Fprintf(&sb, "- %s 问「%s」", humanizeTime(r.CreatedAt), r.Question)
			if names := decodeSpreadNames(r.CardsJSON); len(names) > 0 {
				fmt.Fprintf(&sb, "，抽到 %s", strings.Join(names, "、"))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("引用占卜记录时请按上面的时间自然表达（如「你昨天占的那次」），不要笼统地说「上次」。\n")
	}
	return sb.String()
}

// humanizeTime renders a timestamp the way a person would say it, so the
// model can reference past readings with a natural sense of time.
func humanizeTime(ts time.Time) string {
	now := time.Now()
	diff := now.Sub(ts)

	switch {
	case diff < 5*time.Minute:
		return "刚刚"
	case diff < 30*time.Minute:
		return fmt.Sprintf("%d分钟前", int(diff.Minutes()))
	case diff < time.Hour:
		return "半小时前"
	case diff < 2*time.Hour:
		return "1小时前"
	}

	days := daysBetween(ts, now)
	switch {
	case days == 0:
		switch hour := ts.Hour(); {
		case hour < 6:
			return "今天凌晨"
		case hour < 12:
			return "今天上午"
		case hour < 14:
			return "今天中午"
		case hour < 18:
			return "今天下午"
		default:
			return "今天晚上"
		}
	case days == 1:
		return "昨天"
	case days == 2:
		return "前天"
	case days <= 7:
		return fmt.Sprintf("%d天前", days)
	case days <= 14:
		return "大约一周前"
	case days <= 30:
		return fmt.Sprintf("大约%d周前", days/7)
	case days <= 60:
		return "大约一个月前"
	default:
		return fmt.Sprintf("大约%d个月前", days/30)
	}
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, from.Location())
	b := time.Date(ty, tm, td, 0, 0, 0, 0, to.Location())
	return int(b.Sub(a).Hours() / 24)
}
