package room

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/numberhunt/internal/dependencies/clock"
	"github.com/mcoot/numberhunt/internal/dependencies/random"
	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/storage"
)

const (
	// CodeLength is the length of generated room codes
	CodeLength = 5
	// CodeAlphabet is the characters used in room codes (avoid confusing chars)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// maxCodeAttempts bounds the collision retry loop
	maxCodeAttempts = 100
)

// Config holds configuration for the room controller
type Config struct {
	// StartDelay is how far in the future the shared clock begins
	StartDelay time.Duration
	// ActivityLength is the last marker of a game
	ActivityLength int
}

// DefaultConfig returns default room configuration
func DefaultConfig() Config {
	return Config{
		StartDelay:     3 * time.Second,
		ActivityLength: model.ActivityLength,
	}
}

// LeaveResult describes the room an identity just left
type LeaveResult struct {
	RoomID model.RoomID
	// Room is the remaining room, nil when it was deleted
	Room    *model.Room
	Deleted bool
	// Stopped is set when the departure interrupted a running activity
	Stopped bool
}

// JoinResult is the outcome of Create or Join
type JoinResult struct {
	Room *model.Room
	// Left is set when the identity had to leave another room first
	Left *LeaveResult
}

// Controller manages the room state machine and authoritative progress.
// It is not safe for concurrent use; the relay serialises all calls.
type Controller struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config
}

// NewController creates a new room Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	def := DefaultConfig()
	if cfg.ActivityLength <= 0 {
		cfg.ActivityLength = def.ActivityLength
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = def.StartDelay
	}
	return &Controller{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "room")),
		cfg:     cfg,
	}
}

// Create opens a room with identity as sole member and host, leaving any
// previous room first
func (c *Controller) Create(ctx context.Context, identity *model.Identity) (*JoinResult, error) {
	left, err := c.leaveIfIn(ctx, identity, "")
	if err != nil {
		return nil, err
	}

	room, err := c.newRoom(ctx, identity.Token)
	if err != nil {
		return nil, err
	}
	if err := c.attach(ctx, room, identity); err != nil {
		return nil, err
	}

	c.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)),
		slog.String("host", string(identity.Token)),
	)

	return &JoinResult{Room: room, Left: left}, nil
}

// CreateMatch opens a room for two roomless identities paired by the queue
func (c *Controller) CreateMatch(ctx context.Context, host, guest *model.Identity) (*model.Room, error) {
	if host.InRoom() || guest.InRoom() {
		return nil, model.ErrAlreadyInRoom
	}

	room, err := c.newRoom(ctx, host.Token)
	if err != nil {
		return nil, err
	}
	room.AddMember(guest.Token)
	if err := c.attach(ctx, room, host); err != nil {
		return nil, err
	}
	if err := c.attach(ctx, room, guest); err != nil {
		return nil, err
	}

	c.logger.Info("match room created",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)),
		slog.String("host", string(host.Token)),
		slog.String("guest", string(guest.Token)),
	)

	return room, nil
}

// Join adds identity to the room with the given code. Codes are matched
// case-insensitively after trimming.
func (c *Controller) Join(ctx context.Context, code string, identity *model.Identity) (*JoinResult, error) {
	room, err := c.storage.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if room.Started {
		return nil, model.ErrRoomStarted
	}
	if !room.HasMember(identity.Token) && room.IsFull() {
		return nil, model.ErrRoomFull
	}

	left, err := c.leaveIfIn(ctx, identity, room.ID)
	if err != nil {
		return nil, err
	}

	room.AddMember(identity.Token)
	if err := c.attach(ctx, room, identity); err != nil {
		return nil, err
	}

	c.logger.Info("room joined",
		slog.String("room_id", string(room.ID)),
		slog.String("session_id", string(identity.Token)),
		slog.Int("members", len(room.Members)),
	)

	return &JoinResult{Room: room, Left: left}, nil
}

// Leave removes identity from its room. The room is deleted once empty,
// and the earliest remaining member becomes host if the host left. A nil
// result means the identity was roomless.
func (c *Controller) Leave(ctx context.Context, identity *model.Identity) (*LeaveResult, error) {
	if !identity.InRoom() {
		return nil, nil
	}
	roomID := identity.RoomID

	identity.DetachFromRoom()
	if err := c.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	room, err := c.storage.GetRoom(ctx, roomID)
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	result := &LeaveResult{RoomID: roomID}
	room.RemoveMember(identity.Token)

	if room.IsEmpty() {
		if err := c.storage.DeleteRoom(ctx, roomID); err != nil {
			return nil, err
		}
		result.Deleted = true
		c.logger.Info("room deleted", slog.String("room_id", string(roomID)))
		return result, nil
	}

	if room.Started {
		room.Started = false
		if err := c.clearProgress(ctx, room); err != nil {
			return nil, err
		}
		result.Stopped = true
	}

	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	result.Room = room

	c.logger.Info("room left",
		slog.String("room_id", string(roomID)),
		slog.String("session_id", string(identity.Token)),
		slog.String("host", string(room.HostID)),
		slog.Bool("stopped", result.Stopped),
	)

	return result, nil
}

// SetReady sets the ready flag. It returns nil without error for a
// roomless identity.
func (c *Controller) SetReady(ctx context.Context, identity *model.Identity, ready bool) (*model.Room, error) {
	if !identity.InRoom() {
		return nil, nil
	}
	room, err := c.storage.GetRoom(ctx, identity.RoomID)
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	identity.Ready = ready
	if err := c.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return room, nil
}

// Start begins the room's activity. Only the host may start, and only
// with exactly two ready members.
func (c *Controller) Start(ctx context.Context, identity *model.Identity) (*model.Room, error) {
	if !identity.InRoom() {
		return nil, model.ErrNotInRoom
	}
	room, err := c.storage.GetRoom(ctx, identity.RoomID)
	if err != nil {
		return nil, err
	}

	if room.HostID != identity.Token {
		return nil, model.ErrNotHost
	}
	if room.Started {
		return nil, model.ErrRoomStarted
	}
	if len(room.Members) != model.RoomCapacity {
		return nil, model.ErrWrongSize
	}

	members, err := c.members(ctx, room)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if !m.Ready {
			return nil, model.ErrNotAllReady
		}
	}

	now := c.clock.Now()
	seed := c.random.Uint32()
	startAt := now.Add(c.cfg.StartDelay)

	room.Started = true
	room.Seed = &seed
	room.StartAt = &startAt
	room.CurrentTarget = 1
	room.UpdatedAt = now

	for _, m := range members {
		m.ClearProgress()
		if err := c.storage.SaveIdentity(ctx, m); err != nil {
			return nil, err
		}
	}
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("room started",
		slog.String("room_id", string(room.ID)),
		slog.Any("seed", seed),
		slog.Time("start_at", startAt),
	)

	return room, nil
}

// RecordProgress claims marker for identity. Only a claim equal to the
// room's cursor is accepted; anything else returns nil without error and
// changes nothing. The first correct claim for a marker wins.
func (c *Controller) RecordProgress(ctx context.Context, identity *model.Identity, marker int) (*model.ProgressOutcome, error) {
	if !identity.InRoom() {
		return nil, nil
	}
	room, err := c.storage.GetRoom(ctx, identity.RoomID)
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !room.Started || marker != room.CurrentTarget {
		return nil, nil
	}

	identity.Claim(marker)
	if err := c.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	room.CurrentTarget++
	room.UpdatedAt = c.clock.Now()

	members, err := c.members(ctx, room)
	if err != nil {
		return nil, err
	}
	scores := make([]model.Score, 0, len(members))
	for _, m := range members {
		scores = append(scores, model.Score{ID: m.Token, Score: m.Score()})
	}

	outcome := &model.ProgressOutcome{
		Room:          room,
		From:          identity.Token,
		Found:         marker,
		CurrentTarget: room.CurrentTarget,
		Scores:        scores,
	}

	if room.CurrentTarget > c.cfg.ActivityLength {
		room.Started = false
		if err := c.clearProgress(ctx, room); err != nil {
			return nil, err
		}
		outcome.Completed = true
		outcome.Winner = identity.Token

		c.logger.Info("room completed",
			slog.String("room_id", string(room.ID)),
			slog.String("winner", string(identity.Token)),
		)
	}

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return outcome, nil
}

// Get returns a room by id
func (c *Controller) Get(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return c.storage.GetRoom(ctx, id)
}

// List returns every live room, oldest first
func (c *Controller) List(ctx context.Context) ([]*model.Room, error) {
	return c.storage.ListRooms(ctx)
}

// NormalizeCode trims and upper-cases a user-entered room code
func NormalizeCode(code string) model.RoomCode {
	return model.RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}

func (c *Controller) newRoom(ctx context.Context, host model.IdentityToken) (*model.Room, error) {
	code, err := c.generateCode(ctx)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	return &model.Room{
		ID:        model.RoomID(uuid.NewString()),
		Code:      code,
		HostID:    host,
		Members:   []model.IdentityToken{host},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Generate unique room code
func (c *Controller) generateCode(ctx context.Context) (model.RoomCode, error) {
	for range maxCodeAttempts {
		code := model.RoomCode(c.random.String(CodeLength, CodeAlphabet))
		if len(code) != CodeLength {
			continue
		}
		exists, err := c.storage.RoomCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", model.ErrCodeSpaceExhausted
}

// attach saves the room and points identity at it with a fresh ready flag
func (c *Controller) attach(ctx context.Context, room *model.Room, identity *model.Identity) error {
	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return err
	}
	identity.RoomID = room.ID
	identity.Ready = false
	return c.storage.SaveIdentity(ctx, identity)
}

// leaveIfIn leaves the identity's current room unless it is keep
func (c *Controller) leaveIfIn(ctx context.Context, identity *model.Identity, keep model.RoomID) (*LeaveResult, error) {
	if !identity.InRoom() || identity.RoomID == keep {
		return nil, nil
	}
	return c.Leave(ctx, identity)
}

func (c *Controller) clearProgress(ctx context.Context, room *model.Room) error {
	members, err := c.members(ctx, room)
	if err != nil {
		return err
	}
	for _, m := range members {
		m.ClearProgress()
		if err := c.storage.SaveIdentity(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// members resolves the room's member tokens in order, skipping unknowns
func (c *Controller) members(ctx context.Context, room *model.Room) ([]*model.Identity, error) {
	out := make([]*model.Identity, 0, len(room.Members))
	for _, token := range room.Members {
		identity, err := c.storage.GetIdentity(ctx, token)
		if errors.Is(err, model.ErrIdentityNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, nil
}

// Interface for dependency injection
type ControllerInterface interface {
	Create(ctx context.Context, identity *model.Identity) (*JoinResult, error)
	CreateMatch(ctx context.Context, host, guest *model.Identity) (*model.Room, error)
	Join(ctx context.Context, code string, identity *model.Identity) (*JoinResult, error)
	Leave(ctx context.Context, identity *model.Identity) (*LeaveResult, error)
	SetReady(ctx context.Context, identity *model.Identity, ready bool) (*model.Room, error)
	Start(ctx context.Context, identity *model.Identity) (*model.Room, error)
	RecordProgress(ctx context.Context, identity *model.Identity, marker int) (*model.ProgressOutcome, error)
	Get(ctx context.Context, id model.RoomID) (*model.Room, error)
	List(ctx context.Context) ([]*model.Room, error)
}

var _ ControllerInterface = (*Controller)(nil)
