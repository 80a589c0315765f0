package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/numberhunt/internal/wsproto"
)

// Upgrader turns HTTP upgrade requests into served connections
type Upgrader struct {
	cfg     Config
	handler Handler
	conns   *Set
	logger  *slog.Logger
}

// NewUpgrader creates a new Upgrader. Every accepted connection is tracked
// in conns for the lifetime of its read loop.
func NewUpgrader(cfg Config, handler Handler, conns *Set, logger *slog.Logger) *Upgrader {
	return &Upgrader{
		cfg:     cfg.withDefaults(),
		handler: handler,
		conns:   conns,
		logger:  logger.With(slog.String("component", "transport")),
	}
}

// ServeHTTP negotiates the handshake, hijacks the stream and serves the
// connection until it closes
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		reject(w, "websocket upgrade requires GET")
		return
	}
	accept, err := wsproto.NegotiateRequest(r)
	if err != nil {
		u.logger.Debug("handshake rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		reject(w, err.Error())
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "websocket upgrade not supported", http.StatusInternalServerError)
		return
	}
	netConn, brw, err := hj.Hijack()
	if err != nil {
		u.logger.Error("hijack failed", slog.String("error", err.Error()))
		return
	}
	// the server may have set deadlines for the HTTP exchange
	_ = netConn.SetDeadline(time.Time{})

	if err := wsproto.WriteResponse(brw.Writer, accept); err == nil {
		err = brw.Writer.Flush()
	}
	if err != nil {
		u.logger.Debug("handshake write failed", slog.String("error", err.Error()))
		_ = netConn.Close()
		return
	}

	// brw.Reader may already hold the first frames
	conn := newConn(netConn, brw.Reader, u.cfg, u.handler, u.logger)
	conn.logger.Info("connection upgraded", slog.String("remote_addr", r.RemoteAddr))

	u.conns.add(conn)
	defer u.conns.remove(conn)
	conn.Serve()
}

func reject(w http.ResponseWriter, reason string) {
	w.Header().Set("Connection", "close")
	http.Error(w, reason, http.StatusBadRequest)
}
