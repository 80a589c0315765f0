package storage

import (
	"context"

	"github.com/mcoot/numberhunt/internal/model"
)

// Storage defines the interface for relay state. Nothing outlives the
// process; implementations only need to be safe for concurrent use.
type Storage interface {
	// Identity operations
	SaveIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, token model.IdentityToken) (*model.Identity, error)
	ListIdentities(ctx context.Context) ([]*model.Identity, error)

	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error)
	ListRooms(ctx context.Context) ([]*model.Room, error)
}
