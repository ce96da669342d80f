package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

const divider = "━━━━━━━━━━━━━━━━━"

// handleCommand parses "/name args" and dispatches. A "/name@botname" form
// is accepted too.
func (b *Bot) handleCommand(ctx context.Context, msg bus.InboundMessage) string {
	fields := strings.Fields(msg.Content)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	args := strings.TrimSpace(strings.TrimPrefix(msg.Content, fields[0]))

	b.countCommand(name)
	logger.DebugCF("bot", "Command received", map[string]any{
		"command": name,
		"user_id": userKey(msg),
	})

	switch name {
	case "start", "intro":
		return b.cmdStart(msg)
	case "help":
		return b.cmdHelp(msg)
	case "memory":
		return b.cmdMemory(ctx, msg)
	case "clear":
		return b.cmdClear(ctx, msg)
	case "forget":
		return b.cmdForget(ctx, msg)
	case "tarot":
		return b.cmdTarot(ctx, msg, args)
	case "fortune":
		return b.cmdFortune(ctx, msg, args)
	case "luck":
		return b.cmdLuck(msg)
	case "history":
		return b.cmdHistory(ctx, msg)
	case "balance":
		return b.cmdBalance(ctx, msg)
	case "recharge":
		return b.cmdRecharge(ctx, msg)
	case "group_fortune":
		return b.cmdGroupFortune(ctx, msg)
	case "ranking":
		return b.cmdRanking(ctx, msg)
	case "pk":
		return b.cmdPK(ctx, msg)
	case "topup":
		return b.cmdTopup(ctx, msg, args)
	case "settle":
		return b.cmdSettle(ctx, msg, args)
	default:
		return "这个指令我不认识呢~ 发 /help 看看我能做什么 🌙"
	}
}

func (b *Bot) cmdStart(msg bus.InboundMessage) string {
	return fmt.Sprintf(
		"你好 %s，我是晚晴 🌙\n\n"+
			"很高兴认识你~\n\n"+
			"我是一名塔罗牌解读师，平时帮大家看看牌面、聊聊困惑。\n\n"+
			"你可以：\n"+
			"• 直接和我聊天，说什么都可以\n"+
			"• 发 /tarot 加上问题，我帮你占卜\n"+
			"• 发 /help 看看我还能做什么\n\n"+
			"塔罗揭示的是趋势，真正做决定的人，始终是你。\n\n"+
			"有什么想聊的吗？我在这里听你说~\n\n"+
			"— 晚晴 🌿", displayName(msg))
}

func (b *Bot) cmdHelp(msg bus.InboundMessage) string {
	p := b.cfg.Payments
	t := b.cfg.Tarot

	help := fmt.Sprintf(`嘿，我来介绍一下我能做的事~ 🌙
%[1]s

💬 和我聊天
%[1]s

直接发消息给我就好，什么都可以聊。
在群里 @我，我也会回复~

/intro - 想更了解我的话
/memory - 看看我记住了你什么
/clear - 清空我们的聊天记录
/forget - 让我忘掉关于你的一切

我会记住你告诉我的事，这样能给你更贴心的建议 💭

%[1]s
🎴 塔罗占卜
%[1]s

/tarot 你的问题 - 正式占卜（三张牌阵）
/fortune 你的问题 - 快速求个指引
/luck - 看看今天的运势
/history - 翻翻以前的占卜记录

试试看：
• /tarot 我应该换工作吗
• /tarot 这段感情有结果吗

%[1]s
💎 关于充值
%[1]s

每天有免费额度：占卜 %[2]d 次，聊天 %[3]d 次。
运势、历史记录这些都不限~

用完了也没关系，充一点 USDT 就能继续：
• 📖 深度解读 %.2[4]f USDT
• 🎴 超额占卜 %.2[5]f USDT
• 💬 超额聊天 %.2[6]f USDT

/recharge - 充值
/balance - 看看余额
`, divider, t.FreeTarotDaily, t.FreeChatDaily, p.PriceTarotDetail, p.PriceTarotReading, p.PriceAIChat)

	if msg.ChatType == bus.ChatTypeGroup {
		help += fmt.Sprintf(`
%[1]s
👥 群里的玩法
%[1]s

/group_fortune - 今天群里的运势
/ranking - 看看谁运势最好
/pk - 和朋友来一场塔罗对决

在群里占卜会自动加入排行榜，
@我也可以直接聊天哦~
`, divider)
	} else {
		help += "\n把我拉进群组，还有更多好玩的~ 👥\n"
	}

	help += fmt.Sprintf("\n%s\n\n记住，我不替你做决定，只帮你看清选择。\n真正的力量，在你自己手中~\n\n— 晚晴 🌿", divider)
	return help
}

func (b *Bot) cmdMemory(ctx context.Context, msg bus.InboundMessage) string {
	userID := userKey(msg)

	status, err := b.memory.Status(ctx, userID)
	if err != nil {
		logger.ErrorCF("bot", "memory status failed", map[string]any{"error": err.Error()})
		return "呃，我的记忆好像出了点问题，稍后再试试~"
	}
	memories, err := b.store.ListMemories(ctx, userID, 50)
	if err != nil {
		logger.ErrorCF("bot", "list memories failed", map[string]any{"error": err.Error()})
		return "呃，我的记忆好像出了点问题，稍后再试试~"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💭 我记住你的事\n%s\n\n", divider)
	if len(memories) == 0 {
		sb.WriteString("还没有记住什么呢~ 多和我聊聊，我会慢慢了解你 🌙\n")
	} else {
		for i, m := range memories {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, m.Content)
		}
	}
	fmt.Fprintf(&sb, "\n%s\n", divider)
	fmt.Fprintf(&sb, "📊 最近对话 %d 条，待提炼 %d 条", status.TurnCount, status.BufferSize)
	if status.ExtractionCount > 0 {
		fmt.Fprintf(&sb, "，已提炼 %d 次", status.ExtractionCount)
	}
	sb.WriteString("\n\n不想让我记着？发 /forget 就好~")
	return sb.String()
}

func (b *Bot) cmdClear(ctx context.Context, msg bus.InboundMessage) string {
	if err := b.memory.ClearHistory(ctx, userKey(msg)); err != nil {
		logger.ErrorCF("bot", "clear history failed", map[string]any{"error": err.Error()})
		return "清理的时候出了点问题，稍后再试试~"
	}
	return "好啦，我们的聊天记录清空了~ 记住的事还在哦，想全忘掉的话发 /forget 🌙"
}

func (b *Bot) cmdForget(ctx context.Context, msg bus.InboundMessage) string {
	if err := b.memory.Forget(ctx, userKey(msg)); err != nil {
		logger.ErrorCF("bot", "forget failed", map[string]any{"error": err.Error()})
		return "抱歉，没能完全忘掉……稍后再试一次好吗？"
	}
	return "都忘掉了。聊天、占卜、我记住的一切，全部清零。\n\n我们重新认识吧~ 我是晚晴 🌙"
}

func (b *Bot) cmdTopup(ctx context.Context, msg bus.InboundMessage, args string) string {
	if !b.cfg.IsAdmin(msg.SenderID) {
		return "这个指令只有管理员能用哦~"
	}
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "用法：/topup 用户ID 金额"
	}
	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || amount <= 0 {
		return "金额要是正数哦~"
	}
	if err := b.payments.Credit(ctx, parts[0], amount); err != nil {
		logger.ErrorCF("bot", "topup failed", map[string]any{"error": err.Error()})
		return "入账失败了，看看日志吧~"
	}
	return fmt.Sprintf("✅ 已为 %s 入账 %.4f USDT", parts[0], amount)
}

func (b *Bot) cmdSettle(ctx context.Context, msg bus.InboundMessage, args string) string {
	if !b.cfg.IsAdmin(msg.SenderID) {
		return "这个指令只有管理员能用哦~"
	}
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return "用法：/settle 订单ID 用户ID 金额"
	}
	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || amount <= 0 {
		return "金额要是正数哦~"
	}
	if err := b.payments.SettleRecharge(ctx, parts[0], parts[1], amount); err != nil {
		logger.ErrorCF("bot", "settle failed", map[string]any{"error": err.Error()})
		return fmt.Sprintf("结算失败：%v", err)
	}
	return fmt.Sprintf("✅ 订单 %s 已结算，%s 入账 %.4f USDT", parts[0], parts[1], amount)
}
