package mocks

import (
	"errors"
	"sync"
)

// ErrChannelClosed is returned by Send after Close
var ErrChannelClosed = errors.New("channel closed")

// MockChannel records what is sent to a connection
type MockChannel struct {
	mu          sync.Mutex
	id          string
	sent        []any
	closed      bool
	closeReason string
}

// NewMockChannel creates a new MockChannel with the given id
func NewMockChannel(id string) *MockChannel {
	return &MockChannel{id: id}
}

// ID returns the channel id
func (c *MockChannel) ID() string {
	return c.id
}

// Send records msg unless the channel is closed
func (c *MockChannel) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

// Close marks the channel closed
func (c *MockChannel) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeReason = reason
}

// Sent returns a copy of every recorded message
func (c *MockChannel) Sent() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether Close was called, and with what reason
func (c *MockChannel) Closed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeReason
}

// Reset forgets recorded messages
func (c *MockChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
