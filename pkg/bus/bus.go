package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// publishTimeout bounds how long a channel goroutine blocks on a full queue
// before the message is counted as dropped.
const publishTimeout = 100 * time.Millisecond

const queueDepth = 100

// MessageBus decouples channels from the bot loop. Channels publish inbound
// messages and subscribe to outbound replies addressed to them.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	droppedIn  atomic.Uint64
	droppedOut atomic.Uint64

	closed bool
	mu     sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, queueDepth),
		outbound: make(chan OutboundMessage, queueDepth),
	}
}

// offer enqueues msg, waiting up to publishTimeout under backpressure.
// Returns false when the queue stayed full.
func offer[T any](queue chan T, msg T) bool {
	select {
	case queue <- msg:
		return true
	default:
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case queue <- msg:
		return true
	case <-timer.C:
		return false
	}
}

func receive[T any](ctx context.Context, queue chan T) (T, bool) {
	var zero T
	select {
	case msg, ok := <-queue:
		if !ok {
			return zero, false
		}
		return msg, true
	case <-ctx.Done():
		return zero, false
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	if !offer(mb.inbound, msg) {
		mb.droppedIn.Add(1)
	}
}

// ConsumeInbound blocks until a message arrives or the context ends.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return receive(ctx, mb.inbound)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	if !offer(mb.outbound, msg) {
		mb.droppedOut.Add(1)
	}
}

// SubscribeOutbound blocks until a reply is available or the context ends.
func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return receive(ctx, mb.outbound)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
}

func (mb *MessageBus) DroppedInbound() uint64  { return mb.droppedIn.Load() }
func (mb *MessageBus) DroppedOutbound() uint64 { return mb.droppedOut.Load() }
