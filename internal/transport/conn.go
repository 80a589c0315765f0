package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mcoot/numberhunt/internal/protocol"
	"github.com/mcoot/numberhunt/internal/wsproto"
)

// Errors
var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// State is the lifecycle stage of a connection
type State int32

const (
	StateUpgrading State = iota
	StateAwaitingIdentity
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUpgrading:
		return "upgrading"
	case StateAwaitingIdentity:
		return "awaiting-identity"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives decoded application messages. Calls for one connection
// are made sequentially from its read loop.
type Handler interface {
	// HandleHello establishes the connection's identity. Returning nil moves
	// the connection to StateActive.
	HandleHello(conn *Conn, msg *protocol.Hello) error
	// HandleMessage receives every other message once the connection is active
	HandleMessage(conn *Conn, msg any)
	// HandleClose runs once after the read loop stops
	HandleClose(conn *Conn)
}

var pingFrame, _ = wsproto.Encode(nil, wsproto.OpPing)

// Conn is one upgraded websocket connection. Reads happen on the goroutine
// calling Serve; all writes go through a single writer goroutine.
type Conn struct {
	id        string
	netConn   net.Conn
	reader    *bufio.Reader
	cfg       Config
	handler   Handler
	logger    *slog.Logger
	limiter   *rate.Limiter
	decoder   wsproto.Decoder
	createdAt time.Time

	state atomic.Int32

	send       chan []byte
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	closeFrame []byte // written by the writer after done is closed

	mu        sync.RWMutex
	sessionID string
}

func newConn(netConn net.Conn, reader *bufio.Reader, cfg Config, handler Handler, logger *slog.Logger) *Conn {
	cfg = cfg.withDefaults()
	id := uuid.NewString()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if reader == nil {
		reader = bufio.NewReaderSize(netConn, cfg.ReadBufferSize)
	}

	return &Conn{
		id:         id,
		netConn:    netConn,
		reader:     reader,
		cfg:        cfg,
		handler:    handler,
		logger:     logger.With(slog.String("conn_id", id)),
		limiter:    limiter,
		decoder:    wsproto.Decoder{MaxPayload: cfg.MaxPayload},
		createdAt:  time.Now(),
		send:       make(chan []byte, cfg.SendBufferSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	return c.netConn.RemoteAddr().String()
}

// State returns the current lifecycle stage
func (c *Conn) State() State {
	return State(c.state.Load())
}

// SessionID returns the identity bound to this connection, if any
func (c *Conn) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// BindSession records the identity now owning this connection
func (c *Conn) BindSession(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

// Logger returns the connection-scoped logger
func (c *Conn) Logger() *slog.Logger {
	if sid := c.SessionID(); sid != "" {
		return c.logger.With(slog.String("session_id", sid))
	}
	return c.logger
}

// Send queues msg as a JSON text frame. It never blocks; a connection whose
// buffer is full is closed.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	frame, err := wsproto.Encode(data, wsproto.OpText)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// Close closes the connection normally with the given reason
func (c *Conn) Close(reason string) {
	c.CloseWithCode(wsproto.CloseNormal, reason)
}

// CloseWithCode stops the connection and has the writer send a close frame.
// Only the first call has any effect.
func (c *Conn) CloseWithCode(code wsproto.CloseCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeFrame = wsproto.EncodeClose(code, reason)
		c.state.Store(int32(StateClosed))
		close(c.done)
		// unblock the read loop
		_ = c.netConn.SetReadDeadline(time.Now())

		c.Logger().Debug("connection closing",
			slog.Int("code", int(code)),
			slog.String("reason", reason),
		)
	})
}

// Done is closed once the connection starts shutting down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.Logger().Warn("send buffer full, dropping connection")
		c.CloseWithCode(wsproto.ClosePolicyViolation, "send buffer full")
		return ErrSendBufferFull
	}
}

// Serve runs the read loop until the connection closes. It blocks.
func (c *Conn) Serve() {
	c.state.Store(int32(StateAwaitingIdentity))
	go c.writeLoop()

	defer func() {
		c.handler.HandleClose(c)
		<-c.writerDone
		c.Logger().Info("connection closed")
	}()

	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		n, err := c.reader.Read(buf)
		if n > 0 {
			frames, decodeErr := c.decoder.Feed(buf[:n])
			for _, f := range frames {
				if !c.handleFrame(f) {
					return
				}
			}
			if decodeErr != nil {
				c.Logger().Warn("protocol violation", slog.String("error", decodeErr.Error()))
				c.CloseWithCode(closeCodeFor(decodeErr), decodeErr.Error())
				return
			}
		}
		if err != nil {
			c.CloseWithCode(wsproto.CloseNormal, "")
			return
		}
		if c.State() == StateClosed {
			return
		}
	}
}

// handleFrame processes one inbound frame and reports whether reading
// should continue
func (c *Conn) handleFrame(f wsproto.Frame) bool {
	if c.State() == StateClosed {
		return false
	}

	switch f.Opcode {
	case wsproto.OpText:
		if c.limiter != nil && !c.limiter.Allow() {
			c.Logger().Warn("rate limit exceeded")
			c.CloseWithCode(wsproto.ClosePolicyViolation, "rate limit exceeded")
			return false
		}
		c.dispatch(f.Payload)
		return true

	case wsproto.OpPing:
		pong, err := wsproto.Encode(f.Payload, wsproto.OpPong)
		if err == nil {
			_ = c.enqueue(pong)
		}
		return true

	case wsproto.OpPong:
		return true

	case wsproto.OpClose:
		code, _, err := wsproto.ParseClose(f.Payload)
		if err != nil {
			c.CloseWithCode(wsproto.CloseProtocolError, err.Error())
			return false
		}
		if code == wsproto.CloseNoStatus {
			code = wsproto.CloseNormal
		}
		c.CloseWithCode(code, "")
		return false

	case wsproto.OpBinary:
		c.CloseWithCode(wsproto.CloseUnsupportedData, "binary frames are not supported")
		return false

	default:
		c.CloseWithCode(wsproto.CloseProtocolError, "unsupported opcode "+f.Opcode.String())
		return false
	}
}

func (c *Conn) dispatch(payload []byte) {
	msg, err := protocol.Parse(payload)
	if err != nil {
		c.Logger().Debug("dropping malformed message", slog.String("error", err.Error()))
		return
	}

	if hello, ok := msg.(*protocol.Hello); ok {
		if err := c.handler.HandleHello(c, hello); err != nil {
			c.Logger().Error("hello failed", slog.String("error", err.Error()))
			_ = c.Send(protocol.NewError("internal error"))
			return
		}
		c.state.CompareAndSwap(int32(StateAwaitingIdentity), int32(StateActive))
		return
	}

	if c.State() != StateActive {
		_ = c.Send(protocol.NewError(protocol.MessageMustHello))
		return
	}
	c.handler.HandleMessage(c, msg)
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = c.netConn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.writeFailed(err)
				return
			}

		case <-ticker.C:
			if err := c.write(pingFrame); err != nil {
				c.writeFailed(err)
				return
			}

		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued, then the close frame. Failures
// are ignored.
func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			if c.closeFrame != nil {
				_ = c.write(c.closeFrame)
			}
			return
		}
	}
}

func (c *Conn) write(frame []byte) error {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	_, err := c.netConn.Write(frame)
	return err
}

func (c *Conn) writeFailed(err error) {
	c.Logger().Debug("write failed", slog.String("error", err.Error()))
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

func closeCodeFor(err error) wsproto.CloseCode {
	if errors.Is(err, wsproto.ErrPayloadTooLarge) || errors.Is(err, wsproto.ErrFrameTooLarge) {
		return wsproto.CloseMessageTooBig
	}
	return wsproto.CloseProtocolError
}
