package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mcoot/numberhunt/internal/model"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

// Identity tests

func (s *StorageSuite) TestSaveAndGetIdentity() {
	identity := model.NewIdentity("tok-1", "alice", time.Now())

	err := s.storage.SaveIdentity(s.ctx, identity)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetIdentity(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Nick)
	s.True(retrieved.Online)
}

func (s *StorageSuite) TestGetIdentityNotFound() {
	_, err := s.storage.GetIdentity(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *StorageSuite) TestListIdentitiesOrderedByCreation() {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_ = s.storage.SaveIdentity(s.ctx, model.NewIdentity("b", "bob", base.Add(time.Second)))
	_ = s.storage.SaveIdentity(s.ctx, model.NewIdentity("a", "alice", base))

	identities, err := s.storage.ListIdentities(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(identities, 2)
	s.Equal(model.IdentityToken("a"), identities[0].Token)
	s.Equal(model.IdentityToken("b"), identities[1].Token)
}

// Room tests

func (s *StorageSuite) TestSaveAndGetRoom() {
	room := &model.Room{ID: "room-1", Code: "ABCDE", HostID: "tok-1", Members: []model.IdentityToken{"tok-1"}}

	err := s.storage.SaveRoom(s.ctx, room)
	s.Require().NoError(err)

	byID, err := s.storage.GetRoom(s.ctx, "room-1")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ABCDE"), byID.Code)

	byCode, err := s.storage.GetRoomByCode(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.Equal(model.RoomID("room-1"), byCode.ID)
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrRoomNotFound)

	_, err = s.storage.GetRoomByCode(s.ctx, "ZZZZZ")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestDeleteRoomReleasesCode() {
	room := &model.Room{ID: "room-1", Code: "ABCDE"}
	_ = s.storage.SaveRoom(s.ctx, room)

	exists, err := s.storage.RoomCodeExists(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.True(exists)

	err = s.storage.DeleteRoom(s.ctx, "room-1")
	s.Require().NoError(err)

	exists, err = s.storage.RoomCodeExists(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.storage.GetRoom(s.ctx, "room-1")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestListRooms() {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "r2", Code: "BBBBB", CreatedAt: base.Add(time.Minute)})
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "r1", Code: "AAAAA", CreatedAt: base})

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 2)
	s.Equal(model.RoomID("r1"), rooms[0].ID)
	s.Equal(model.RoomID("r2"), rooms[1].ID)
}
