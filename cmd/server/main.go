package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/mcoot/numberhunt/internal/api"
	"github.com/mcoot/numberhunt/internal/factory"
	"github.com/mcoot/numberhunt/internal/services/auth"
	"github.com/mcoot/numberhunt/internal/services/registry"
	"github.com/mcoot/numberhunt/internal/services/room"
	"github.com/mcoot/numberhunt/internal/transport"
)

type options struct {
	host             string
	port             int
	logLevel         string
	logFormat        string
	requireResumeKey bool

	heartbeat  time.Duration
	writeWait  time.Duration
	sendBuffer int
	maxPayload int
	rateLimit  float64
	rateBurst  int

	startDelay     time.Duration
	activityLength int
	shutdown       time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serverDefaults := api.DefaultServerConfig()
	transportDefaults := transport.DefaultConfig()
	roomDefaults := room.DefaultConfig()

	opts := &options{
		host:             envOrDefault("NUMBERHUNT_HOST", serverDefaults.Host),
		port:             envIntOrDefault("NUMBERHUNT_PORT", serverDefaults.Port),
		logLevel:         envOrDefault("NUMBERHUNT_LOG_LEVEL", "info"),
		logFormat:        envOrDefault("NUMBERHUNT_LOG_FORMAT", "json"),
		requireResumeKey: envBoolOrDefault("NUMBERHUNT_REQUIRE_RESUME_KEY", false),
		heartbeat:        transportDefaults.HeartbeatInterval,
		writeWait:        transportDefaults.WriteWait,
		sendBuffer:       transportDefaults.SendBufferSize,
		maxPayload:       transportDefaults.MaxPayload,
		rateLimit:        float64(transportDefaults.RateLimit),
		rateBurst:        transportDefaults.RateBurst,
		startDelay:       roomDefaults.StartDelay,
		activityLength:   roomDefaults.ActivityLength,
		shutdown:         serverDefaults.ShutdownTimeout,
	}

	cmd := &cobra.Command{
		Use:   "numberhunt",
		Short: "Real-time session relay for the number hunt game",
		Long: `numberhunt accepts websocket connections, pairs players through a
matchmaking queue or room codes, and relays an authoritative progress
cursor between the two members of each room.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", opts.host, "Listen host (env: NUMBERHUNT_HOST)")
	f.IntVar(&opts.port, "port", opts.port, "Listen port (env: NUMBERHUNT_PORT)")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: debug, info, warn, error (env: NUMBERHUNT_LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", opts.logFormat, "Log format: json, text (env: NUMBERHUNT_LOG_FORMAT)")
	f.BoolVar(&opts.requireResumeKey, "require-resume-key", opts.requireResumeKey, "Require the resume key to reclaim a session (env: NUMBERHUNT_REQUIRE_RESUME_KEY)")
	f.DurationVar(&opts.heartbeat, "heartbeat", opts.heartbeat, "Interval between server pings")
	f.DurationVar(&opts.writeWait, "write-wait", opts.writeWait, "Time allowed to write one frame")
	f.IntVar(&opts.sendBuffer, "send-buffer", opts.sendBuffer, "Outbound frames queued per connection")
	f.IntVar(&opts.maxPayload, "max-payload", opts.maxPayload, "Largest accepted inbound payload in bytes")
	f.Float64Var(&opts.rateLimit, "rate-limit", opts.rateLimit, "Inbound messages per second per connection, 0 disables")
	f.IntVar(&opts.rateBurst, "rate-burst", opts.rateBurst, "Inbound message burst per connection")
	f.DurationVar(&opts.startDelay, "start-delay", opts.startDelay, "Delay between room:start and the shared start time")
	f.IntVar(&opts.activityLength, "activity-length", opts.activityLength, "Number of markers in one game")
	f.DurationVar(&opts.shutdown, "shutdown-timeout", opts.shutdown, "Graceful shutdown timeout")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, err := newLogger(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	authCfg := auth.DefaultConfig()
	authCfg.RequireResumeKey = opts.requireResumeKey

	app, err := factory.New(factory.Config{
		Logger:         logger,
		AuthConfig:     authCfg,
		RegistryConfig: registry.DefaultConfig(),
		RoomConfig: room.Config{
			StartDelay:     opts.startDelay,
			ActivityLength: opts.activityLength,
		},
		TransportConfig: transport.Config{
			HeartbeatInterval: opts.heartbeat,
			WriteWait:         opts.writeWait,
			SendBufferSize:    opts.sendBuffer,
			MaxPayload:        opts.maxPayload,
			RateLimit:         rate.Limit(opts.rateLimit),
			RateBurst:         opts.rateBurst,
		},
	})
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = opts.host
	serverConfig.Port = opts.port
	serverConfig.ShutdownTimeout = opts.shutdown
	server := app.NewServer(serverConfig)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be json or text", format)
	}
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}
