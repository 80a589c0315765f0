// Package relay routes decoded client events to the registry, the
// matchmaking queue and the room controller, and broadcasts the results.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/numberhunt/internal/dependencies/clock"
	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/protocol"
	"github.com/mcoot/numberhunt/internal/services/matchmaking"
	"github.com/mcoot/numberhunt/internal/services/registry"
	"github.com/mcoot/numberhunt/internal/services/room"
)

// Channel is a connection the hub can address
type Channel = registry.Channel

// Hub serialises every mutation of identities, the queue and rooms behind
// one mutex, so multi-identity transitions never interleave
type Hub struct {
	mu sync.Mutex

	registry *registry.Registry
	queue    *matchmaking.Queue
	rooms    *room.Controller
	clock    clock.Clock
	logger   *slog.Logger

	// sessions maps channel id to the identity it established
	sessions map[string]model.IdentityToken
}

// New creates a new Hub
func New(
	registry *registry.Registry,
	queue *matchmaking.Queue,
	rooms *room.Controller,
	clock clock.Clock,
	logger *slog.Logger,
) *Hub {
	return &Hub{
		registry: registry,
		queue:    queue,
		rooms:    rooms,
		clock:    clock,
		logger:   logger.With(slog.String("component", "relay")),
		sessions: make(map[string]model.IdentityToken),
	}
}

// Hello establishes or revives the identity named by msg on ch and
// replays room state to ch if the identity is room-bound
func (h *Hub) Hello(ch Channel, msg *protocol.Hello) (model.IdentityToken, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := context.Background()

	prev, bound := h.sessions[ch.ID()]

	result, err := h.registry.Establish(ctx, registry.EstablishRequest{
		Token:     msg.SessionID,
		Nick:      msg.Nick,
		ResumeKey: msg.ResumeKey,
	}, ch)
	if err != nil {
		return "", err
	}
	identity := result.Identity

	// a second hello that lands on another identity releases the first
	if bound && prev != identity.Token {
		h.releaseLocked(ctx, prev, ch)
	}
	h.sessions[ch.ID()] = identity.Token

	if result.Replaced != nil {
		delete(h.sessions, result.Replaced.ID())
		result.Replaced.Close("session replaced")
	}

	h.send(ch, protocol.HelloReply{
		Type:      protocol.TypeHello,
		SessionID: string(identity.Token),
		ResumeKey: result.ResumeKey,
	})

	if identity.InRoom() {
		h.replayRoom(ctx, ch, identity)
	}

	// a queued identity that came back may now be pairable
	if h.queue.Contains(identity.Token) {
		h.tryPair(ctx)
	}

	return identity.Token, nil
}

// replayRoom sends room:joined, and game:resume for a running activity, to
// the reconnecting channel only; other members just see a room:state
func (h *Hub) replayRoom(ctx context.Context, ch Channel, identity *model.Identity) {
	rm, err := h.rooms.Get(ctx, identity.RoomID)
	if err != nil {
		h.logger.Warn("identity referenced a missing room",
			slog.String("session_id", string(identity.Token)),
			slog.String("room_id", string(identity.RoomID)),
		)
		identity.DetachFromRoom()
		_ = h.registry.Save(ctx, identity)
		return
	}

	lookup := h.lookup(ctx)
	h.send(ch, protocol.NewRoomView(protocol.TypeRoomJoined, rm, lookup))
	if rm.Started {
		h.send(ch, protocol.NewGameResume(rm, identity.Token, lookup))
	}
	h.broadcastExcept(rm, identity.Token, protocol.NewRoomState(rm, lookup))
}

// Dispatch handles one message from an established channel
func (h *Hub) Dispatch(ch Channel, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := context.Background()

	token, ok := h.sessions[ch.ID()]
	if !ok {
		h.send(ch, protocol.NewError(protocol.MessageMustHello))
		return
	}
	identity, err := h.registry.Resolve(ctx, token)
	if err != nil {
		h.logger.Error("bound identity missing",
			slog.String("session_id", string(token)),
			slog.String("error", err.Error()),
		)
		return
	}

	switch m := msg.(type) {
	case *protocol.QueueJoin:
		h.handleQueueJoin(ctx, ch, identity)
	case *protocol.QueueLeave:
		h.queue.Dequeue(identity.Token)
		h.send(ch, protocol.NewAck(protocol.TypeQueueLeft))
	case *protocol.RoomCreate:
		h.handleRoomCreate(ctx, ch, identity, m)
	case *protocol.RoomJoin:
		h.handleRoomJoin(ctx, ch, identity, m)
	case *protocol.RoomLeave:
		h.handleRoomLeave(ctx, ch, identity)
	case *protocol.RoomReady:
		h.handleRoomReady(ctx, ch, identity, m)
	case *protocol.RoomStart:
		h.handleRoomStart(ctx, ch, identity)
	case *protocol.GameProgress:
		h.handleGameProgress(ctx, identity, m)
	case *protocol.Unknown:
		h.send(ch, protocol.NewError(protocol.MessageUnknownType))
	default:
		h.logger.Warn("unhandled message", slog.Any("message", msg))
	}
}

// Disconnect releases the identity bound to ch, if ch still owns it
func (h *Hub) Disconnect(ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(context.Background(), ch)
}

func (h *Hub) disconnectLocked(ctx context.Context, ch Channel) {
	token, ok := h.sessions[ch.ID()]
	if !ok {
		return
	}
	delete(h.sessions, ch.ID())
	h.releaseLocked(ctx, token, ch)
}

// releaseLocked marks token offline if ch still owns it and tells its room
func (h *Hub) releaseLocked(ctx context.Context, token model.IdentityToken, ch Channel) {
	identity, changed, err := h.registry.Disconnect(ctx, token, ch)
	if err != nil {
		h.logger.Error("disconnect failed",
			slog.String("session_id", string(token)),
			slog.String("error", err.Error()),
		)
		return
	}
	if !changed || !identity.InRoom() {
		return
	}

	rm, err := h.rooms.Get(ctx, identity.RoomID)
	if err != nil {
		return
	}
	h.broadcast(rm, protocol.NewRoomState(rm, h.lookup(ctx)))
}

func (h *Hub) handleQueueJoin(ctx context.Context, ch Channel, identity *model.Identity) {
	left, err := h.rooms.Leave(ctx, identity)
	if err != nil {
		h.internalError(ch, "leave before queue", err)
		return
	}
	h.announceLeave(ctx, left)

	h.queue.Enqueue(identity.Token)
	h.send(ch, protocol.NewAck(protocol.TypeQueueOK))
	h.tryPair(ctx)
}

// tryPair turns every pair the queue can form into a room. Pairs whose room
// cannot be created go back to the head of the queue.
func (h *Hub) tryPair(ctx context.Context) {
	for _, pair := range h.queue.TryPair(h.eligible(ctx)) {
		host := h.registry.Lookup(ctx, pair.Host)
		guest := h.registry.Lookup(ctx, pair.Guest)
		if host == nil || guest == nil {
			h.requeue(ctx, pair)
			continue
		}

		rm, err := h.rooms.CreateMatch(ctx, host, guest)
		if err != nil {
			h.logger.Warn("match room creation failed",
				slog.String("host", string(pair.Host)),
				slog.String("guest", string(pair.Guest)),
				slog.String("error", err.Error()),
			)
			h.requeue(ctx, pair)
			continue
		}

		lookup := h.lookup(ctx)
		h.broadcast(rm, protocol.NewRoomView(protocol.TypeMatchFound, rm, lookup))
		h.broadcast(rm, protocol.NewRoomView(protocol.TypeRoomJoined, rm, lookup))
	}
}

func (h *Hub) requeue(ctx context.Context, pair matchmaking.Pair) {
	eligible := h.eligible(ctx)
	if eligible(pair.Guest) {
		h.queue.PushFront(pair.Guest)
	}
	if eligible(pair.Host) {
		h.queue.PushFront(pair.Host)
	}
}

func (h *Hub) eligible(ctx context.Context) matchmaking.Eligibility {
	return func(token model.IdentityToken) bool {
		identity := h.registry.Lookup(ctx, token)
		return identity != nil && identity.Online && !identity.InRoom()
	}
}

func (h *Hub) handleRoomCreate(ctx context.Context, ch Channel, identity *model.Identity, msg *protocol.RoomCreate) {
	if err := h.registry.Rename(ctx, identity, msg.Nick); err != nil {
		h.internalError(ch, "rename", err)
		return
	}

	result, err := h.rooms.Create(ctx, identity)
	if err != nil {
		h.send(ch, protocol.NewRoomError(err))
		return
	}
	h.queue.Dequeue(identity.Token)
	h.announceLeave(ctx, result.Left)

	h.send(ch, protocol.NewRoomView(protocol.TypeRoomCreated, result.Room, h.lookup(ctx)))
}

func (h *Hub) handleRoomJoin(ctx context.Context, ch Channel, identity *model.Identity, msg *protocol.RoomJoin) {
	if err := h.registry.Rename(ctx, identity, msg.Nick); err != nil {
		h.internalError(ch, "rename", err)
		return
	}

	result, err := h.rooms.Join(ctx, msg.Code, identity)
	if err != nil {
		h.send(ch, protocol.NewRoomError(err))
		return
	}
	h.queue.Dequeue(identity.Token)
	h.announceLeave(ctx, result.Left)

	h.broadcast(result.Room, protocol.NewRoomView(protocol.TypeRoomJoined, result.Room, h.lookup(ctx)))
}

func (h *Hub) handleRoomLeave(ctx context.Context, ch Channel, identity *model.Identity) {
	left, err := h.rooms.Leave(ctx, identity)
	if err != nil {
		h.internalError(ch, "leave", err)
		return
	}
	h.send(ch, protocol.NewAck(protocol.TypeRoomLeft))
	h.announceLeave(ctx, left)
}

func (h *Hub) handleRoomReady(ctx context.Context, ch Channel, identity *model.Identity, msg *protocol.RoomReady) {
	rm, err := h.rooms.SetReady(ctx, identity, msg.Ready)
	if err != nil {
		h.internalError(ch, "ready", err)
		return
	}
	if rm == nil {
		return
	}
	h.broadcast(rm, protocol.NewRoomState(rm, h.lookup(ctx)))
}

func (h *Hub) handleRoomStart(ctx context.Context, ch Channel, identity *model.Identity) {
	rm, err := h.rooms.Start(ctx, identity)
	if err != nil {
		h.send(ch, protocol.NewRoomError(err))
		return
	}
	h.broadcast(rm, protocol.NewGameStart(rm))
}

func (h *Hub) handleGameProgress(ctx context.Context, identity *model.Identity, msg *protocol.GameProgress) {
	outcome, err := h.rooms.RecordProgress(ctx, identity, msg.Found)
	if err != nil {
		h.logger.Error("record progress failed",
			slog.String("session_id", string(identity.Token)),
			slog.String("error", err.Error()),
		)
		return
	}
	if outcome == nil {
		return
	}

	h.broadcast(outcome.Room, protocol.NewGameProgress(outcome))
	if outcome.Completed {
		h.broadcast(outcome.Room, protocol.NewGameOver(outcome))
	}
}

// announceLeave tells whoever remains in a room someone just left
func (h *Hub) announceLeave(ctx context.Context, left *room.LeaveResult) {
	if left == nil || left.Room == nil {
		return
	}
	h.broadcast(left.Room, protocol.NewRoomState(left.Room, h.lookup(ctx)))
}

func (h *Hub) broadcast(rm *model.Room, msg any) {
	h.broadcastExcept(rm, "", msg)
}

func (h *Hub) broadcastExcept(rm *model.Room, skip model.IdentityToken, msg any) {
	for _, token := range rm.Members {
		if token == skip {
			continue
		}
		if ch, ok := h.registry.Channel(token); ok {
			h.send(ch, msg)
		}
	}
}

// send delivers best-effort; a failing channel is torn down by its own
// connection
func (h *Hub) send(ch Channel, msg any) {
	if err := ch.Send(msg); err != nil {
		h.logger.Debug("send failed",
			slog.String("channel_id", ch.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Hub) internalError(ch Channel, op string, err error) {
	h.logger.Error("operation failed",
		slog.String("op", op),
		slog.String("channel_id", ch.ID()),
		slog.String("error", err.Error()),
	)
	h.send(ch, protocol.NewError("internal error"))
}

func (h *Hub) lookup(ctx context.Context) protocol.IdentityLookup {
	return func(token model.IdentityToken) *model.Identity {
		return h.registry.Lookup(ctx, token)
	}
}
