package model

import "time"

// RoomID uniquely identifies a room
type RoomID string

// RoomCode is a short human-shareable identifier for joining rooms
type RoomCode string

const (
	// RoomCapacity is the maximum number of members in a room
	RoomCapacity = 2

	// ActivityLength is the number of markers in one game; the game ends
	// once the cursor moves past it
	ActivityLength = 100
)

// Room is a two-party session with an authoritative progress cursor
type Room struct {
	ID      RoomID
	Code    RoomCode
	HostID  IdentityToken
	Members []IdentityToken // join order, at most RoomCapacity

	Started bool
	Seed    *uint32    // nil until the first start
	StartAt *time.Time // nil until the first start

	// CurrentTarget is the next marker the room expects
	CurrentTarget int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether the token is a member of the room
func (r *Room) HasMember(token IdentityToken) bool {
	return r.memberIndex(token) >= 0
}

// IsFull reports whether the room is at capacity
func (r *Room) IsFull() bool {
	return len(r.Members) >= RoomCapacity
}

// IsEmpty reports whether the room has no members
func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// AddMember appends the token if it is not already a member
func (r *Room) AddMember(token IdentityToken) {
	if r.HasMember(token) {
		return
	}
	r.Members = append(r.Members, token)
}

// RemoveMember removes the token, reassigning host to the earliest
// remaining member when the host leaves. It reports whether the token was
// a member.
func (r *Room) RemoveMember(token IdentityToken) bool {
	idx := r.memberIndex(token)
	if idx < 0 {
		return false
	}
	r.Members = append(r.Members[:idx], r.Members[idx+1:]...)
	if r.HostID == token {
		r.HostID = ""
		if len(r.Members) > 0 {
			r.HostID = r.Members[0]
		}
	}
	return true
}

// Others returns the members other than token, in join order
func (r *Room) Others(token IdentityToken) []IdentityToken {
	out := make([]IdentityToken, 0, len(r.Members))
	for _, m := range r.Members {
		if m != token {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) memberIndex(token IdentityToken) int {
	for i, m := range r.Members {
		if m == token {
			return i
		}
	}
	return -1
}
