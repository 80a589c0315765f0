package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/numberhunt/internal/dependencies/clock"
	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/services/auth"
	"github.com/mcoot/numberhunt/internal/storage"
)

// Channel is the physical connection currently owning an identity
type Channel interface {
	ID() string
	Send(msg any) error
	Close(reason string)
}

// Config holds registry limits
type Config struct {
	MaxTokenLength int
	MaxNickLength  int
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{
		MaxTokenLength: 64,
		MaxNickLength:  24,
	}
}

// Registry maps identity tokens to their records and live channels.
// It is not safe for concurrent use; the relay serialises all calls.
type Registry struct {
	storage storage.Storage
	auth    *auth.Service
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	channels map[model.IdentityToken]Channel
}

// New creates a new Registry
func New(storage storage.Storage, auth *auth.Service, clock clock.Clock, logger *slog.Logger, cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = def.MaxTokenLength
	}
	if cfg.MaxNickLength <= 0 {
		cfg.MaxNickLength = def.MaxNickLength
	}
	return &Registry{
		storage:  storage,
		auth:     auth,
		clock:    clock,
		logger:   logger.With(slog.String("component", "registry")),
		cfg:      cfg,
		channels: make(map[model.IdentityToken]Channel),
	}
}

// EstablishRequest carries the identity-establishing fields of a hello
type EstablishRequest struct {
	Token     string
	Nick      string
	ResumeKey string
}

// EstablishResult describes the identity bound to a channel
type EstablishResult struct {
	Identity *model.Identity
	Created  bool

	// Replaced is the distinct channel that previously owned the identity.
	// The caller closes it.
	Replaced Channel

	// ResumeKey is only set for newly created identities
	ResumeKey string
}

// Establish binds ch to the identity named by req, creating it if the
// token is absent or unknown, or reviving it otherwise. Room membership,
// ready flag and found markers survive a revive.
func (r *Registry) Establish(ctx context.Context, req EstablishRequest, ch Channel) (*EstablishResult, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" || len(token) > r.cfg.MaxTokenLength {
		token = r.mintToken()
	}
	nick := r.normalizeNick(req.Nick)

	identity, err := r.storage.GetIdentity(ctx, model.IdentityToken(token))
	switch {
	case err == nil:
		if authErr := r.auth.AuthorizeResume(identity, req.ResumeKey); authErr != nil {
			r.logger.Warn("resume rejected, minting fresh identity",
				slog.String("session_id", token),
				slog.String("channel_id", ch.ID()),
			)
			return r.create(ctx, model.IdentityToken(r.mintToken()), nick, ch)
		}
		return r.revive(ctx, identity, nick, ch)
	case errors.Is(err, model.ErrIdentityNotFound):
		return r.create(ctx, model.IdentityToken(token), nick, ch)
	default:
		return nil, err
	}
}

func (r *Registry) create(ctx context.Context, token model.IdentityToken, nick string, ch Channel) (*EstablishResult, error) {
	identity := model.NewIdentity(token, nick, r.clock.Now())

	key, hash, err := r.auth.IssueResumeKey()
	if err != nil {
		return nil, err
	}
	identity.ResumeKeyHash = hash

	if err := r.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	r.channels[token] = ch

	r.logger.Info("identity created",
		slog.String("session_id", string(token)),
		slog.String("channel_id", ch.ID()),
	)

	return &EstablishResult{Identity: identity, Created: true, ResumeKey: key}, nil
}

func (r *Registry) revive(ctx context.Context, identity *model.Identity, nick string, ch Channel) (*EstablishResult, error) {
	result := &EstablishResult{Identity: identity}

	if prev, ok := r.channels[identity.Token]; ok && prev.ID() != ch.ID() {
		result.Replaced = prev
	}
	r.channels[identity.Token] = ch

	identity.Online = true
	identity.LastSeen = r.clock.Now()
	if nick != "" {
		identity.Nick = nick
	}
	if err := r.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	r.logger.Info("identity revived",
		slog.String("session_id", string(identity.Token)),
		slog.String("channel_id", ch.ID()),
		slog.Bool("replaced", result.Replaced != nil),
		slog.String("room_id", string(identity.RoomID)),
	)

	return result, nil
}

// Resolve returns the identity for a token
func (r *Registry) Resolve(ctx context.Context, token model.IdentityToken) (*model.Identity, error) {
	return r.storage.GetIdentity(ctx, token)
}

// Lookup is Resolve without the error, for building views
func (r *Registry) Lookup(ctx context.Context, token model.IdentityToken) *model.Identity {
	identity, err := r.storage.GetIdentity(ctx, token)
	if err != nil {
		return nil
	}
	return identity
}

// Rename updates the nickname if one is given
func (r *Registry) Rename(ctx context.Context, identity *model.Identity, nick string) error {
	nick = r.normalizeNick(nick)
	if nick == "" || nick == identity.Nick {
		return nil
	}
	identity.Nick = nick
	return r.storage.SaveIdentity(ctx, identity)
}

// Channel returns the channel currently owning the token, if any
func (r *Registry) Channel(token model.IdentityToken) (Channel, bool) {
	ch, ok := r.channels[token]
	return ch, ok
}

// IsLive reports whether the identity exists and is online
func (r *Registry) IsLive(ctx context.Context, token model.IdentityToken) bool {
	identity := r.Lookup(ctx, token)
	return identity != nil && identity.Online
}

// Disconnect marks the identity offline if ch still owns it. A channel that
// was already replaced by a reconnect does not affect the identity.
func (r *Registry) Disconnect(ctx context.Context, token model.IdentityToken, ch Channel) (*model.Identity, bool, error) {
	current, ok := r.channels[token]
	if !ok || current.ID() != ch.ID() {
		return nil, false, nil
	}
	delete(r.channels, token)

	identity, err := r.storage.GetIdentity(ctx, token)
	if err != nil {
		return nil, false, err
	}
	identity.Online = false
	identity.LastSeen = r.clock.Now()
	if err := r.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, false, err
	}

	r.logger.Info("identity offline",
		slog.String("session_id", string(token)),
		slog.String("channel_id", ch.ID()),
	)

	return identity, true, nil
}

// OnlineCount returns the number of identities with a live channel
func (r *Registry) OnlineCount() int {
	return len(r.channels)
}

func (r *Registry) mintToken() string {
	return uuid.NewString()
}

func (r *Registry) normalizeNick(nick string) string {
	nick = strings.TrimSpace(nick)
	if utf8.RuneCountInString(nick) <= r.cfg.MaxNickLength {
		return nick
	}
	runes := []rune(nick)
	return string(runes[:r.cfg.MaxNickLength])
}

// List returns every identity, live or dormant, oldest first
func (r *Registry) List(ctx context.Context) ([]*model.Identity, error) {
	return r.storage.ListIdentities(ctx)
}

// Save persists changes made to an identity
func (r *Registry) Save(ctx context.Context, identity *model.Identity) error {
	return r.storage.SaveIdentity(ctx, identity)
}
