package channels

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/cyberFlowTech/wanqing/pkg/bus"
	"github.com/cyberFlowTech/wanqing/pkg/config"
	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

// ConsoleChannel is a local REPL for talking to the bot without any chat
// platform, mainly for development.
type ConsoleChannel struct {
	*BaseChannel
	config config.ConsoleConfig
	rl     *readline.Instance
	done   chan struct{}
}

func NewConsoleChannel(cfg config.ConsoleConfig, b *bus.MessageBus) *ConsoleChannel {
	userID := cfg.UserID
	if userID == "" {
		userID = "console"
	}
	cfg.UserID = userID

	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", b, nil),
		config:      cfg,
		done:        make(chan struct{}),
	}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	c.rl = rl
	c.setRunning(true)
	logger.InfoC("console", "Console channel ready, type to chat")

	go c.readLoop(ctx)
	return nil
}

func (c *ConsoleChannel) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err != io.EOF {
				logger.WarnCF("console", "readline failed", map[string]any{"error": err.Error()})
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		c.publish(bus.InboundMessage{
			SenderID:   c.config.UserID,
			SenderName: c.config.UserID,
			ChatID:     "console",
			ChatType:   bus.ChatTypePrivate,
			Content:    line,
		})
	}
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.rl != nil {
		_ = c.rl.Close()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return nil
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("console channel not running")
	}
	fmt.Printf("晚晴> %s\n", msg.Content)
	return nil
}
