package factory

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/numberhunt/internal/api"
	"github.com/mcoot/numberhunt/internal/dependencies/clock"
	"github.com/mcoot/numberhunt/internal/dependencies/random"
	"github.com/mcoot/numberhunt/internal/relay"
	"github.com/mcoot/numberhunt/internal/services/auth"
	"github.com/mcoot/numberhunt/internal/services/matchmaking"
	"github.com/mcoot/numberhunt/internal/services/registry"
	"github.com/mcoot/numberhunt/internal/services/room"
	"github.com/mcoot/numberhunt/internal/storage"
	"github.com/mcoot/numberhunt/internal/storage/memory"
	"github.com/mcoot/numberhunt/internal/transport"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService    *auth.Service
	Registry       *registry.Registry
	Queue          *matchmaking.Queue
	RoomController *room.Controller
	Hub            *relay.Hub

	// Transport
	Conns    *transport.Set
	Upgrader *transport.Upgrader
	Handler  http.Handler

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// AuthConfig holds configuration for the auth service (optional)
	AuthConfig auth.Config
	// RegistryConfig bounds session tokens and nicknames (optional)
	RegistryConfig registry.Config
	// RoomConfig holds start delay and activity length (optional)
	// If zero value, defaults to room.DefaultConfig()
	RoomConfig room.Config
	// TransportConfig holds per-connection tunables (optional)
	// If zero value, defaults to transport.DefaultConfig()
	TransportConfig transport.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	return newWithDependencies(memory.New(), clock.New(), random.New(), cfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config) *App {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	roomCfg := cfg.RoomConfig
	if roomCfg == (room.Config{}) {
		roomCfg = room.DefaultConfig()
	}
	transportCfg := cfg.TransportConfig
	if transportCfg == (transport.Config{}) {
		transportCfg = transport.DefaultConfig()
	}

	authService := auth.New(cfg.AuthConfig)
	reg := registry.New(store, authService, clk, logger, cfg.RegistryConfig)
	queue := matchmaking.NewQueue()
	rooms := room.NewController(store, clk, rnd, logger, roomCfg)
	hub := relay.New(reg, queue, rooms, clk, logger)

	conns := transport.NewSet()
	upgrader := transport.NewUpgrader(transportCfg, hub.Handler(), conns, logger)
	handler := api.NewRouter(api.RouterConfig{
		Logger:   logger,
		Hub:      hub,
		Conns:    conns,
		Upgrader: upgrader,
	})

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		AuthService:    authService,
		Registry:       reg,
		Queue:          queue,
		RoomController: rooms,
		Hub:            hub,
		Conns:          conns,
		Upgrader:       upgrader,
		Handler:        handler,
		Logger:         logger,
	}
}

// NewServer wraps the app's handler in an api.Server
func (a *App) NewServer(cfg api.ServerConfig) *api.Server {
	return api.NewServer(a.Handler, a.Conns, cfg, a.Logger)
}
