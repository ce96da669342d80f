package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/config"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

const (
	sendTimeout = 10 * time.Second
	// Discord caps messages at 2000 characters; leave headroom so chunks
	// can end on a natural boundary.
	discordChunkLimit = 1500
)

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
}

func NewDiscordChannel(cfg config.DiscordConfig, b *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", b, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord channel")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord channel connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord channel")
	c.setRunning(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord channel not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("discord send: empty chat id")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	for _, chunk := range splitMessage(msg.Content, discordChunkLimit) {
		if err := c.sendChunk(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send discord message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	chatType := bus.ChatTypeGroup
	if m.GuildID == "" {
		chatType = bus.ChatTypePrivate
	}

	// In guild channels free chat only engages when the bot is mentioned;
	// strip the mention so the model never sees the raw tag.
	mentionsBot := false
	for _, mention := range m.Mentions {
		if mention.ID == s.State.User.ID {
			mentionsBot = true
			break
		}
	}
	if mentionsBot {
		content = strings.TrimSpace(strings.NewReplacer(
			"<@"+s.State.User.ID+">", "",
			"<@!"+s.State.User.ID+">", "",
		).Replace(content))
	}

	// A duel challenge targets whoever the message replies to.
	replyToID := ""
	replyToName := ""
	if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		replyToID = m.ReferencedMessage.Author.ID
		replyToName = m.ReferencedMessage.Author.Username
	}

	// The reply is on its way; show the typing hint meanwhile.
	_ = s.ChannelTyping(m.ChannelID)

	c.publish(bus.InboundMessage{
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		ChatID:     m.ChannelID,
		ChatType:   chatType,
		Content:    content,
		ReplyToID:  replyToID,
		Metadata: map[string]string{
			"message_id":    m.ID,
			"guild_id":      m.GuildID,
			"reply_to_name": replyToName,
			"mentions_bot":  fmt.Sprintf("%t", mentionsBot),
		},
	})
}

// splitMessage splits long replies into chunks, preferring to break at a
// newline and falling back to a space.
func splitMessage(content string, limit int) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= limit {
			chunks = append(chunks, content)
			break
		}

		cut := lastIndexWithin(content[:limit], '\n', 200)
		if cut <= 0 {
			cut = lastIndexWithin(content[:limit], ' ', 100)
		}
		if cut <= 0 {
			cut = limit
		}

		chunks = append(chunks, content[:cut])
		content = strings.TrimSpace(content[cut:])
	}
	return chunks
}

// lastIndexWithin finds the last occurrence of sep within the trailing
// window of s, or -1.
func lastIndexWithin(s string, sep byte, window int) int {
	start := len(s) - window
	if start < 0 {
		start = 0
	}
	for i := len(s) - 1; i >= start; i-- {
		if s[i] == sep {
			return i
		}
	}
	return -1
}
