package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "discord", SenderID: "u1", ChatID: "c1", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected inbound message")
	}
	if msg.Content != "hello" || msg.SenderID != "u1" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := mb.ConsumeInbound(ctx)
	if ok {
		t.Fatal("expected no message on cancelled context")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	// Must not panic on a closed bus.
	mb.PublishInbound(InboundMessage{Content: "late"})
	mb.PublishOutbound(OutboundMessage{Content: "late"})
}

func TestOutboundDropCounting(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < 101; i++ {
		mb.PublishOutbound(OutboundMessage{Content: "x"})
	}
	if got := mb.DroppedOutbound(); got != 1 {
		t.Fatalf("expected 1 dropped outbound, got %d", got)
	}
}
