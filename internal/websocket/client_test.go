package websocket

import (
	"testing"

	"training-service/internal/service"
)

func TestSendEventAfterShutdownIsDropped(t *testing.T) {
	c := NewClient(nil, nil, "u1", "s1")

	c.shutdown()
	c.shutdown() // idempotent

	// Service goroutines keep the emit reference past unregister; a late
	// push must be a silent no-op, never a panic.
	c.SendEvent(service.OutboundEvent{Type: service.EventCustomerTurn})
	c.SendMessage(MessageTypePong, nil)

	if got := len(c.Send); got != 0 {
		t.Fatalf("expected no frames queued after shutdown, got %d", got)
	}
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	c := NewClient(nil, nil, "u1", "s1")

	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte("frame")
	}

	// Must neither block nor grow the buffer.
	c.SendEvent(service.OutboundEvent{Type: service.EventStepChanged})

	if got := len(c.Send); got != cap(c.Send) {
		t.Fatalf("expected a full buffer of %d frames, got %d", cap(c.Send), got)
	}
}
