package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/numberhunt/internal/dependencies/mocks"
	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/services/auth"
	"github.com/mcoot/numberhunt/internal/storage/memory"
	"github.com/mcoot/numberhunt/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.storage, auth.New(auth.DefaultConfig()), s.clock, testutil.NopLogger(), DefaultConfig())
	s.ctx = context.Background()
}

func (s *RegistrySuite) establish(token, nick string, ch Channel) *EstablishResult {
	result, err := s.registry.Establish(s.ctx, EstablishRequest{Token: token, Nick: nick}, ch)
	s.Require().NoError(err)
	return result
}

func (s *RegistrySuite) TestEstablishWithoutTokenMintsOne() {
	result := s.establish("", "ann", mocks.NewMockChannel("c1"))

	s.True(result.Created)
	s.NotEmpty(result.Identity.Token)
	s.NotEmpty(result.ResumeKey)
	s.Equal("ann", result.Identity.Nick)
	s.True(result.Identity.Online)

	stored, err := s.registry.Resolve(s.ctx, result.Identity.Token)
	s.Require().NoError(err)
	s.Same(result.Identity, stored)
}

func (s *RegistrySuite) TestEstablishUnknownTokenCreatesIdentityWithThatToken() {
	result := s.establish("my-token", "", mocks.NewMockChannel("c1"))

	s.True(result.Created)
	s.Equal(model.IdentityToken("my-token"), result.Identity.Token)
}

func (s *RegistrySuite) TestEstablishOverlongTokenIsReplaced() {
	long := strings.Repeat("x", 65)
	result := s.establish(long, "", mocks.NewMockChannel("c1"))

	s.True(result.Created)
	s.NotEqual(model.IdentityToken(long), result.Identity.Token)
}

func (s *RegistrySuite) TestEstablishTruncatesNick() {
	result := s.establish("", strings.Repeat("n", 40), mocks.NewMockChannel("c1"))
	s.Len(result.Identity.Nick, 24)
}

func (s *RegistrySuite) TestReconnectReplacesLiveChannelAndPreservesState() {
	first := mocks.NewMockChannel("c1")
	created := s.establish("tok", "ann", first)
	identity := created.Identity
	identity.RoomID = "room-1"
	identity.Ready = true
	identity.Claim(1)
	identity.Claim(2)

	second := mocks.NewMockChannel("c2")
	revived := s.establish("tok", "", second)

	s.False(revived.Created)
	s.Empty(revived.ResumeKey)
	s.Same(first, revived.Replaced)
	s.Equal(model.RoomID("room-1"), revived.Identity.RoomID)
	s.True(revived.Identity.Ready)
	s.Equal([]int{1, 2}, revived.Identity.FoundNumbers())
	s.Equal("ann", revived.Identity.Nick, "empty nick keeps the old one")

	ch, ok := s.registry.Channel("tok")
	s.True(ok)
	s.Same(second, ch)
}

func (s *RegistrySuite) TestReconnectSameChannelReplacesNothing() {
	ch := mocks.NewMockChannel("c1")
	s.establish("tok", "", ch)
	revived := s.establish("tok", "", ch)
	s.Nil(revived.Replaced)
}

func (s *RegistrySuite) TestDisconnectMarksOfflineAndStampsLastSeen() {
	ch := mocks.NewMockChannel("c1")
	s.establish("tok", "", ch)
	s.clock.Advance(5 * time.Second)

	identity, ok, err := s.registry.Disconnect(s.ctx, "tok", ch)
	s.Require().NoError(err)
	s.True(ok)
	s.False(identity.Online)
	s.Equal(s.clock.Now(), identity.LastSeen)
	s.False(s.registry.IsLive(s.ctx, "tok"))
	s.Zero(s.registry.OnlineCount())

	_, err = s.registry.Resolve(s.ctx, "tok")
	s.NoError(err, "identities are never deleted")
}

func (s *RegistrySuite) TestDisconnectOfReplacedChannelIsIgnored() {
	old := mocks.NewMockChannel("c1")
	s.establish("tok", "", old)
	s.establish("tok", "", mocks.NewMockChannel("c2"))

	_, ok, err := s.registry.Disconnect(s.ctx, "tok", old)
	s.Require().NoError(err)
	s.False(ok)
	s.True(s.registry.IsLive(s.ctx, "tok"))
}

func (s *RegistrySuite) TestDormantIdentityRevives() {
	ch := mocks.NewMockChannel("c1")
	s.establish("tok", "", ch)
	_, _, _ = s.registry.Disconnect(s.ctx, "tok", ch)

	revived := s.establish("tok", "", mocks.NewMockChannel("c2"))
	s.False(revived.Created)
	s.Nil(revived.Replaced)
	s.True(revived.Identity.Online)
}

func (s *RegistrySuite) TestResolveUnknown() {
	_, err := s.registry.Resolve(s.ctx, "missing")
	s.ErrorIs(err, model.ErrIdentityNotFound)
	s.Nil(s.registry.Lookup(s.ctx, "missing"))
}

func (s *RegistrySuite) TestRequiredResumeKeyBlocksHijack() {
	cfg := auth.DefaultConfig()
	cfg.RequireResumeKey = true
	s.registry = New(s.storage, auth.New(cfg), s.clock, testutil.NopLogger(), DefaultConfig())

	owner := mocks.NewMockChannel("c1")
	created := s.establish("tok", "ann", owner)

	hijack, err := s.registry.Establish(s.ctx, EstablishRequest{Token: "tok", ResumeKey: "rk_wrong"}, mocks.NewMockChannel("c2"))
	s.Require().NoError(err)
	s.True(hijack.Created)
	s.NotEqual(model.IdentityToken("tok"), hijack.Identity.Token)
	s.Nil(hijack.Replaced)
	closed, _ := owner.Closed()
	s.False(closed)

	resumed, err := s.registry.Establish(s.ctx, EstablishRequest{Token: "tok", ResumeKey: created.ResumeKey}, mocks.NewMockChannel("c3"))
	s.Require().NoError(err)
	s.False(resumed.Created)
	s.Same(owner, resumed.Replaced)
}
