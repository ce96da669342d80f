// Package bot is the conversation core: it consumes inbound messages from
// the bus, routes commands, runs the persona chat flow and publishes
// replies.
package bot

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/config"
	"github.com/cyberFlowTech/wanqing/pkg/groups"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/memory"
	"github.com/cyberFlowTech/wanqing/pkg/observability"
	"github.com/cyberFlowTech/wanqing/pkg/payments"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
	"github.com/cyberFlowTech/wanqing/pkg/store"
	"github.com/cyberFlowTech/wanqing/pkg/tarot"
)

type Bot struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	store    *store.SQLiteStore
	memory   *memory.Service
	provider providers.Provider
	deck     *tarot.Deck
	groups   *groups.Manager
	payments *payments.Manager
	running  atomic.Bool
}

type Deps struct {
	Config   *config.Config
	Bus      *bus.MessageBus
	Store    *store.SQLiteStore
	Memory   *memory.Service
	Provider providers.Provider
	Deck     *tarot.Deck
	Groups   *groups.Manager
	Payments *payments.Manager
}

func New(deps Deps) *Bot {
	return &Bot{
		cfg:      deps.Config,
		bus:      deps.Bus,
		store:    deps.Store,
		memory:   deps.Memory,
		provider: deps.Provider,
		deck:     deps.Deck,
		groups:   deps.Groups,
		payments: deps.Payments,
	}
}

// Run consumes inbound messages until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.running.Store(true)
	logger.InfoC("bot", "Bot loop started")

	for b.running.Load() {
		msg, ok := b.bus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		reply := b.processMessage(ctx, msg)
		if reply == "" {
			continue
		}
		b.bus.PublishOutbound(bus.OutboundMessage{
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			Content:   reply,
			ReplyToID: msg.Metadata["message_id"],
		})
	}
	return nil
}

func (b *Bot) Stop() {
	b.running.Store(false)
}

// processMessage routes one inbound message and returns the reply text, or
// "" when the bot should stay silent.
func (b *Bot) processMessage(ctx context.Context, msg bus.InboundMessage) string {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return ""
	}

	if strings.HasPrefix(content, "/") {
		return b.handleCommand(ctx, msg)
	}

	// Free chat: in groups only when the bot was addressed.
	if msg.ChatType == bus.ChatTypeGroup && msg.Metadata["mentions_bot"] != "true" {
		return ""
	}
	return b.handleChat(ctx, msg)
}

// userKey is the identity the memory and ledger are keyed by. Channels
// already deliver globally unique sender IDs, but prefix them so a console
// "123" never collides with a discord "123".
func userKey(msg bus.InboundMessage) string {
	return msg.Channel + ":" + msg.SenderID
}

func (b *Bot) countCommand(name string) {
	observability.CommandsHandled.WithLabelValues(name).Inc()
}

func displayName(msg bus.InboundMessage) string {
	if msg.SenderName != "" {
		return msg.SenderName
	}
	return "朋友"
}
