package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/config"
	"github.com/cyberFlowTech/wanqing/pkg/groups"
	"github.com/cyberFlowTech/wanqing/pkg/memory"
	"github.com/cyberFlowTech/wanqing/pkg/payments"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
	"github.com/cyberFlowTech/wanqing/pkg/store"
	"github.com/cyberFlowTech/wanqing/pkg/tarot"
)

type stubProvider struct {
	reply string
	calls int
	err   error
}

func (p *stubProvider) Chat(_ context.Context, _ []providers.Message, _ providers.Options) (*providers.LLMResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &providers.LLMResponse{Content: p.reply, FinishReason: "stop"}, nil
}

func (p *stubProvider) DefaultModel() string { return "stub" }

func newTestBot(t *testing.T) (*Bot, *store.SQLiteStore, *stubProvider) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "wanqing.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultConfig()
	cfg.Payments.AdminUserIDs = config.FlexibleStringSlice{"admin"}

	provider := &stubProvider{reply: "我在听~ 🌙"}
	deck := tarot.NewDeckSeeded(11)
	b := New(Deps{
		Config:   cfg,
		Bus:      bus.NewMessageBus(),
		Store:    st,
		Memory:   memory.NewService(memory.Config{}, st, nil),
		Provider: provider,
		Deck:     deck,
		Groups:   groups.NewManager(st, deck),
		Payments: payments.NewManager(st, payments.Pricing{
			TarotReading:   cfg.Payments.PriceTarotReading,
			TarotDetail:    cfg.Payments.PriceTarotDetail,
			AIChat:         cfg.Payments.PriceAIChat,
			FreeTarotDaily: cfg.Tarot.FreeTarotDaily,
			FreeChatDaily:  cfg.Tarot.FreeChatDaily,
		}),
	})
	return b, st, provider
}

func privateMsg(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "console",
		SenderID:   "u1",
		SenderName: "小明",
		ChatID:     "console",
		ChatType:   bus.ChatTypePrivate,
		Content:    content,
	}
}

func groupMsg(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "discord",
		SenderID:   "u1",
		SenderName: "小明",
		ChatID:     "g1",
		ChatType:   bus.ChatTypeGroup,
		Content:    content,
		Metadata:   map[string]string{},
	}
}

func TestCmdStartAndHelp(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	reply := b.processMessage(ctx, privateMsg("/start"))
	if !strings.Contains(reply, "晚晴") || !strings.Contains(reply, "小明") {
		t.Fatalf("start reply missing persona or name: %q", reply)
	}

	help := b.processMessage(ctx, privateMsg("/help"))
	if !strings.Contains(help, "/tarot") || !strings.Contains(help, "/recharge") {
		t.Fatalf("help missing commands: %q", help)
	}
	if strings.Contains(help, "/group_fortune") {
		t.Fatal("private help must not list group commands")
	}
	groupHelp := b.processMessage(ctx, groupMsg("/help"))
	if !strings.Contains(groupHelp, "/group_fortune") {
		t.Fatal("group help must list group commands")
	}
}

func TestUnknownCommand(t *testing.T) {
	b, _, _ := newTestBot(t)
	reply := b.processMessage(context.Background(), privateMsg("/whatever"))
	if !strings.Contains(reply, "/help") {
		t.Fatalf("unknown command should point at /help: %q", reply)
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	b, _, _ := newTestBot(t)
	reply := b.processMessage(context.Background(), privateMsg("/start@wanqing_bot"))
	if !strings.Contains(reply, "晚晴") {
		t.Fatalf("suffixed command not routed: %q", reply)
	}
}

func TestGroupCommandsRequireGroup(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	for _, cmd := range []string{"/group_fortune", "/ranking", "/pk"} {
		reply := b.processMessage(ctx, privateMsg(cmd))
		if !strings.Contains(reply, "群里") {
			t.Fatalf("%s in private should hint at groups: %q", cmd, reply)
		}
	}
}

func TestCmdTarot(t *testing.T) {
	b, st, provider := newTestBot(t)
	provider.reply = "牌面显示，向前走吧~"
	ctx := context.Background()

	if reply := b.processMessage(ctx, privateMsg("/tarot")); !strings.Contains(reply, "问题") {
		t.Fatalf("bare /tarot should ask for a question: %q", reply)
	}

	reply := b.processMessage(ctx, privateMsg("/tarot 我该换工作吗"))
	if !strings.Contains(reply, "过去") || !strings.Contains(reply, "未来") {
		t.Fatalf("reading missing spread positions: %q", reply)
	}
	if !strings.Contains(reply, "牌面显示，向前走吧~") {
		t.Fatalf("reading missing interpretation: %q", reply)
	}

	readings, err := st.RecentReadings(ctx, "console:u1", 10)
	if err != nil {
		t.Fatalf("recent readings: %v", err)
	}
	if len(readings) != 1 || readings[0].Question != "我该换工作吗" {
		t.Fatalf("reading not persisted: %#v", readings)
	}
}

func TestCmdTarot_InGroupJoinsRanking(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	reply := b.processMessage(ctx, groupMsg("/tarot 今天如何"))
	if !strings.Contains(reply, "上榜") {
		t.Fatalf("group reading should mention the leaderboard: %q", reply)
	}

	ranking := b.processMessage(ctx, groupMsg("/ranking"))
	if !strings.Contains(ranking, "小明") {
		t.Fatalf("ranking missing the reader: %q", ranking)
	}
}

func TestCmdTarot_QuotaExhausted(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	for i := 0; i < b.cfg.Tarot.FreeTarotDaily; i++ {
		if reply := b.processMessage(ctx, privateMsg("/tarot 问题")); strings.Contains(reply, "用完") {
			t.Fatalf("use %d should still be free: %q", i, reply)
		}
	}
	reply := b.processMessage(ctx, privateMsg("/tarot 问题"))
	if !strings.Contains(reply, "/recharge") {
		t.Fatalf("exhausted quota should point at /recharge: %q", reply)
	}
}

func TestChatFlow(t *testing.T) {
	b, _, provider := newTestBot(t)
	ctx := context.Background()

	reply := b.processMessage(ctx, privateMsg("最近有点迷茫"))
	if reply != "我在听~ 🌙" {
		t.Fatalf("chat reply = %q", reply)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}

	history, err := b.memory.Recent(ctx, "console:u1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("both turns must be recorded, got %#v", history)
	}
}

func TestChat_GroupRequiresMention(t *testing.T) {
	b, _, provider := newTestBot(t)
	ctx := context.Background()

	if reply := b.processMessage(ctx, groupMsg("随便聊聊")); reply != "" {
		t.Fatalf("unaddressed group chat must stay silent, got %q", reply)
	}
	if provider.calls != 0 {
		t.Fatal("provider must not be called for unaddressed group chat")
	}

	msg := groupMsg("晚晴你好")
	msg.Metadata["mentions_bot"] = "true"
	if reply := b.processMessage(ctx, msg); reply == "" {
		t.Fatal("mentioned group chat must get a reply")
	}
}

func TestCmdMemoryAndForget(t *testing.T) {
	b, st, _ := newTestBot(t)
	ctx := context.Background()

	if err := st.SaveMemories(ctx, "console:u1", []string{"在杭州工作"}); err != nil {
		t.Fatalf("seed memories: %v", err)
	}
	b.processMessage(ctx, privateMsg("聊一句"))

	memView := b.processMessage(ctx, privateMsg("/memory"))
	if !strings.Contains(memView, "在杭州工作") {
		t.Fatalf("memory view missing fact: %q", memView)
	}

	forget := b.processMessage(ctx, privateMsg("/forget"))
	if !strings.Contains(forget, "忘掉") {
		t.Fatalf("forget reply = %q", forget)
	}
	memView = b.processMessage(ctx, privateMsg("/memory"))
	if strings.Contains(memView, "在杭州工作") {
		t.Fatal("forgotten fact still shown")
	}
}

func TestCmdBalanceAndRecharge(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	balance := b.processMessage(ctx, privateMsg("/balance"))
	if !strings.Contains(balance, "0.0000 USDT") {
		t.Fatalf("fresh balance should be zero: %q", balance)
	}

	recharge := b.processMessage(ctx, privateMsg("/recharge"))
	if !strings.Contains(recharge, payments.DepositAddress("console:u1")) {
		t.Fatalf("recharge missing deposit address: %q", recharge)
	}
}

func TestCmdTopup_AdminOnly(t *testing.T) {
	b, st, _ := newTestBot(t)
	ctx := context.Background()

	if reply := b.processMessage(ctx, privateMsg("/topup u9 5")); strings.Contains(reply, "✅") {
		t.Fatalf("non-admin topup must be rejected: %q", reply)
	}

	adminMsg := privateMsg("/topup u9 5")
	adminMsg.SenderID = "admin"
	if reply := b.processMessage(ctx, adminMsg); !strings.Contains(reply, "✅") {
		t.Fatalf("admin topup failed: %q", reply)
	}
	info, err := st.GetBalance(ctx, "u9")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if info.Balance != 5 {
		t.Fatalf("balance = %v, want 5", info.Balance)
	}
}

func TestCmdPK(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	if reply := b.processMessage(ctx, groupMsg("/pk")); !strings.Contains(reply, "回复") {
		t.Fatalf("bare /pk should explain the reply flow: %q", reply)
	}

	msg := groupMsg("/pk")
	msg.ReplyToID = "u2"
	msg.Metadata["reply_to_name"] = "小红"
	reply := b.processMessage(ctx, msg)
	if !strings.Contains(reply, "VS") || !strings.Contains(reply, "能量值") {
		t.Fatalf("duel result malformed: %q", reply)
	}

	selfMsg := groupMsg("/pk")
	selfMsg.ReplyToID = "u1"
	if reply := b.processMessage(ctx, selfMsg); !strings.Contains(reply, "自己") {
		t.Fatalf("self duel must be rejected: %q", reply)
	}
}

func TestCmdGroupFortune(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	first := b.processMessage(ctx, groupMsg("/group_fortune"))
	if !strings.Contains(first, "今日群运势") || !strings.Contains(first, "主牌") {
		t.Fatalf("fortune malformed: %q", first)
	}
	second := b.processMessage(ctx, groupMsg("/group_fortune"))
	for _, line := range strings.Split(first, "\n") {
		if strings.Contains(line, "主牌") && !strings.Contains(second, line) {
			t.Fatalf("same-day fortune changed: %q vs %q", first, second)
		}
	}
}

func TestCmdHistory(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	if reply := b.processMessage(ctx, privateMsg("/history")); !strings.Contains(reply, "还没有") {
		t.Fatalf("empty history reply = %q", reply)
	}

	b.processMessage(ctx, privateMsg("/tarot 事业如何"))
	reply := b.processMessage(ctx, privateMsg("/history"))
	if !strings.Contains(reply, "事业如何") {
		t.Fatalf("history missing reading: %q", reply)
	}
}

func TestLuckAndFortuneAreFree(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if reply := b.processMessage(ctx, privateMsg("/luck")); !strings.Contains(reply, "今日运势") {
			t.Fatalf("luck %d failed: %q", i, reply)
		}
		if reply := b.processMessage(ctx, privateMsg(fmt.Sprintf("/fortune 问题%d", i))); !strings.Contains(reply, "快速指引") {
			t.Fatalf("fortune %d failed: %q", i, reply)
		}
	}
}
