package model

import (
	"slices"
	"time"
)

// IdentityToken durably identifies a player across reconnects
type IdentityToken string

// Identity is one player, kept alive (but possibly offline) for the life of
// the process so that a dropped connection can resume where it left off
type Identity struct {
	Token    IdentityToken
	Nick     string
	Online   bool
	LastSeen time.Time

	// RoomID is a lookup key into the room collection, empty when roomless.
	// The room owns membership; this is only a back-reference.
	RoomID RoomID

	Ready bool
	Found map[int]struct{}

	// ResumeKeyHash is the bcrypt hash of the key handed out on creation
	ResumeKeyHash []byte

	CreatedAt time.Time
}

// NewIdentity creates an online identity with no room
func NewIdentity(token IdentityToken, nick string, now time.Time) *Identity {
	return &Identity{
		Token:     token,
		Nick:      nick,
		Online:    true,
		LastSeen:  now,
		Found:     make(map[int]struct{}),
		CreatedAt: now,
	}
}

// InRoom reports whether the identity currently references a room
func (i *Identity) InRoom() bool {
	return i.RoomID != ""
}

// Claim records a found marker
func (i *Identity) Claim(marker int) {
	if i.Found == nil {
		i.Found = make(map[int]struct{})
	}
	i.Found[marker] = struct{}{}
}

// HasFound reports whether the marker was claimed by this identity
func (i *Identity) HasFound(marker int) bool {
	_, ok := i.Found[marker]
	return ok
}

// Score is the number of markers claimed
func (i *Identity) Score() int {
	return len(i.Found)
}

// FoundNumbers returns the claimed markers in ascending order
func (i *Identity) FoundNumbers() []int {
	out := make([]int, 0, len(i.Found))
	for n := range i.Found {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// ClearProgress empties the found set
func (i *Identity) ClearProgress() {
	i.Found = make(map[int]struct{})
}

// DetachFromRoom drops the room reference along with the per-room state
func (i *Identity) DetachFromRoom() {
	i.RoomID = ""
	i.Ready = false
	i.ClearProgress()
}
