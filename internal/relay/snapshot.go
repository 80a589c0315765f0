package relay

import (
	"context"
	"time"

	"github.com/mcoot/numberhunt/internal/protocol"
)

// IdentityInfo describes one identity in a snapshot
type IdentityInfo struct {
	ID       string    `json:"id"`
	Nick     string    `json:"nick"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
	RoomID   string    `json:"roomId,omitempty"`
	Ready    bool      `json:"ready"`
	Found    int       `json:"found"`
}

// RoomInfo describes one room in a snapshot
type RoomInfo struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	HostID        string            `json:"hostId"`
	Started       bool              `json:"started"`
	Seed          *uint32           `json:"seed,omitempty"`
	StartAt       *time.Time        `json:"startAt,omitempty"`
	CurrentTarget int               `json:"currentTarget"`
	Members       []protocol.Member `json:"members"`
	Scores        []protocol.Score  `json:"scores"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Snapshot is a point-in-time copy of relay state for health and debugging
type Snapshot struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Online      int            `json:"online"`
	Identities  []IdentityInfo `json:"identities"`
	Rooms       []RoomInfo     `json:"rooms"`
	Queue       []string       `json:"queue"`
}

// Stats is the count summary reported by the health endpoint
type Stats struct {
	Online     int `json:"online"`
	Identities int `json:"identities"`
	Rooms      int `json:"rooms"`
	Queued     int `json:"queued"`
}

// Snapshot copies the current state under the hub lock
func (h *Hub) Snapshot(ctx context.Context) (*Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	identities, err := h.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := h.rooms.List(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GeneratedAt: h.clock.Now(),
		Online:      h.registry.OnlineCount(),
		Identities:  make([]IdentityInfo, 0, len(identities)),
		Rooms:       make([]RoomInfo, 0, len(rooms)),
		Queue:       make([]string, 0, h.queue.Len()),
	}

	for _, i := range identities {
		snap.Identities = append(snap.Identities, IdentityInfo{
			ID:       string(i.Token),
			Nick:     i.Nick,
			Online:   i.Online,
			LastSeen: i.LastSeen,
			RoomID:   string(i.RoomID),
			Ready:    i.Ready,
			Found:    i.Score(),
		})
	}

	lookup := h.lookup(ctx)
	for _, r := range rooms {
		info := RoomInfo{
			ID:            string(r.ID),
			Code:          string(r.Code),
			HostID:        string(r.HostID),
			Started:       r.Started,
			CurrentTarget: r.CurrentTarget,
			Members:       protocol.MembersFromRoom(r, lookup),
			Scores:        protocol.ScoresForRoom(r, lookup),
			CreatedAt:     r.CreatedAt,
		}
		if r.Seed != nil {
			seed := *r.Seed
			info.Seed = &seed
		}
		if r.StartAt != nil {
			startAt := *r.StartAt
			info.StartAt = &startAt
		}
		snap.Rooms = append(snap.Rooms, info)
	}

	for _, t := range h.queue.Snapshot() {
		snap.Queue = append(snap.Queue, string(t))
	}

	return snap, nil
}

// Stats returns live counts
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	snap, err := h.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Online:     snap.Online,
		Identities: len(snap.Identities),
		Rooms:      len(snap.Rooms),
		Queued:     len(snap.Queue),
	}, nil
}
