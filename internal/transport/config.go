package transport

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/numberhunt/internal/wsproto"
)

// Config holds per-connection tunables
type Config struct {
	// HeartbeatInterval is the time between empty pings
	HeartbeatInterval time.Duration
	// WriteWait is the time allowed to write one frame to the peer
	WriteWait time.Duration
	// SendBufferSize is the number of outbound frames queued per connection
	SendBufferSize int
	// ReadBufferSize is the size of each socket read
	ReadBufferSize int
	// MaxPayload bounds a single inbound frame payload
	MaxPayload int
	// RateLimit is the sustained inbound text frame rate; zero disables it
	RateLimit rate.Limit
	// RateBurst is the inbound burst allowance
	RateBurst int
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		WriteWait:         10 * time.Second,
		SendBufferSize:    256,
		ReadBufferSize:    4096,
		MaxPayload:        wsproto.DefaultMaxPayload,
		RateLimit:         20,
		RateBurst:         40,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.MaxPayload <= 0 {
		c.MaxPayload = def.MaxPayload
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = def.RateBurst
	}
	return c
}
