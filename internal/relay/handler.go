package relay

import (
	"github.com/mcoot/numberhunt/internal/protocol"
	"github.com/mcoot/numberhunt/internal/transport"
)

// connHandler adapts the hub to transport connections
type connHandler struct {
	hub *Hub
}

// Handler returns the transport.Handler that feeds connections into the hub
func (h *Hub) Handler() transport.Handler {
	return connHandler{hub: h}
}

func (c connHandler) HandleHello(conn *transport.Conn, msg *protocol.Hello) error {
	token, err := c.hub.Hello(conn, msg)
	if err != nil {
		return err
	}
	conn.BindSession(string(token))
	return nil
}

func (c connHandler) HandleMessage(conn *transport.Conn, msg any) {
	c.hub.Dispatch(conn, msg)
}

func (c connHandler) HandleClose(conn *transport.Conn) {
	c.hub.Disconnect(conn)
}
