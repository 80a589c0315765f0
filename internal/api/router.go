package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/numberhunt/internal/middleware"
	"github.com/mcoot/numberhunt/internal/relay"
	"github.com/mcoot/numberhunt/internal/transport"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger   *slog.Logger
	Hub      *relay.Hub
	Conns    *transport.Set
	Upgrader http.Handler
}

// NewRouter creates the router. Any request carrying "Upgrade: websocket"
// goes to the upgrader regardless of path.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	h := &handlers{
		hub:    cfg.Hub,
		conns:  cfg.Conns,
		logger: cfg.Logger,
	}

	r.Use(middleware.Recovery(cfg.Logger, middleware.JSONPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	r.MatcherFunc(isUpgrade).Handler(cfg.Upgrader)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/debug", h.debugPage).Methods(http.MethodGet)
	r.HandleFunc("/debug.json", h.debugJSON).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(notFound)

	return r
}

func isUpgrade(r *http.Request, _ *mux.RouteMatch) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}
