package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

func (b *Bot) cmdBalance(ctx context.Context, msg bus.InboundMessage) string {
	summary, err := b.payments.Balance(ctx, userKey(msg), time.Now())
	if err != nil {
		logger.ErrorCF("bot", "balance failed", map[string]any{"error": err.Error()})
		return "查余额的时候出了点问题，稍后再试试~"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 我的余额\n%s\n\n", divider)
	fmt.Fprintf(&sb, "余额：%.4f USDT\n", summary.Balance.Balance)
	if summary.Balance.TotalRecharged > 0 {
		fmt.Fprintf(&sb, "累计充值：%.4f USDT\n累计消费：%.4f USDT\n",
			summary.Balance.TotalRecharged, summary.Balance.TotalSpent)
		sb.WriteString("谢谢你的支持~ 🌙\n")
	}
	fmt.Fprintf(&sb, "\n%s\n\n📅 今日免费额度\n", divider)

	if summary.TarotRemaining > 0 {
		fmt.Fprintf(&sb, "🎴 占卜还剩 %d 次\n", summary.TarotRemaining)
	} else {
		fmt.Fprintf(&sb, "🎴 占卜免费次数已用完（%.2f USDT/次）\n", summary.Pricing.TarotReading)
	}
	if summary.ChatRemaining > 0 {
		fmt.Fprintf(&sb, "💬 聊天还剩 %d 次\n", summary.ChatRemaining)
	} else {
		fmt.Fprintf(&sb, "💬 聊天免费次数已用完（%.2f USDT/次）\n", summary.Pricing.AIChat)
	}

	fmt.Fprintf(&sb, "\n%s\n\n", divider)
	fmt.Fprintf(&sb, "📖 深度解读 %.2f USDT/次\n", summary.Pricing.TarotDetail)
	fmt.Fprintf(&sb, "🎴 占卜每天 %d 次免费，之后 %.2f USDT/次\n", summary.Pricing.FreeTarotDaily, summary.Pricing.TarotReading)
	fmt.Fprintf(&sb, "💬 聊天每天 %d 次免费，之后 %.2f USDT/次\n", summary.Pricing.FreeChatDaily, summary.Pricing.AIChat)
	sb.WriteString("\n想充值的话发 /recharge 💎")
	return sb.String()
}

func (b *Bot) cmdRecharge(ctx context.Context, msg bus.InboundMessage) string {
	userID := userKey(msg)

	order, err := b.payments.CreateRechargeOrder(ctx, userID)
	if err != nil {
		logger.ErrorCF("bot", "create recharge order failed", map[string]any{"error": err.Error()})
		return "创建充值订单失败了，稍后再试试~"
	}
	summary, err := b.payments.Balance(ctx, userID, time.Now())
	if err != nil {
		logger.ErrorCF("bot", "balance after order failed", map[string]any{"error": err.Error()})
		return "创建充值订单失败了，稍后再试试~"
	}

	return fmt.Sprintf(`💎 USDT 充值
%[1]s

这是你的专属充值地址（TRC20）：

%[2]s

转入任意金额的 USDT，到账后我会帮你入账~
订单号：%[3]s

%[1]s

当前余额：%.4[4]f USDT

充值后发 /balance 确认到账 🌙`,
		divider, order.Address, order.ID, summary.Balance.Balance)
}
