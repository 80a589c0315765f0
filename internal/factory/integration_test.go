package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/numberhunt/internal/api"
	"github.com/mcoot/numberhunt/internal/dependencies/mocks"
	"github.com/mcoot/numberhunt/internal/model"
	"github.com/mcoot/numberhunt/internal/protocol"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) hello(id, session, nick string) (*mocks.MockChannel, string) {
	ch := mocks.NewMockChannel(id)
	token, err := s.app.Hub.Hello(ch, &protocol.Hello{SessionID: session, Nick: nick})
	s.Require().NoError(err)
	ch.Reset()
	return ch, string(token)
}

func (s *IntegrationSuite) lastOfType(ch *mocks.MockChannel, typ string) map[string]any {
	var found map[string]any
	for _, msg := range ch.Sent() {
		data, err := json.Marshal(msg)
		s.Require().NoError(err)
		var m map[string]any
		s.Require().NoError(json.Unmarshal(data, &m))
		if m["type"] == typ {
			found = m
		}
	}
	s.Require().NotNil(found, "no %s message", typ)
	return found
}

// Test: Complete flow from room creation to game over
func (s *IntegrationSuite) TestCompleteGameFlow() {
	s.app.MockRandom.QueueString("ROOM1")
	s.app.MockRandom.QueueUint32(4242)

	alice, aliceID := s.hello("c1", "alice-token", "alice")
	bob, bobID := s.hello("c2", "bob-token", "bob")

	// Step 1: Create and join
	s.app.Hub.Dispatch(alice, &protocol.RoomCreate{})
	created := s.lastOfType(alice, protocol.TypeRoomCreated)
	s.Equal("ROOM1", created["code"])

	s.app.Hub.Dispatch(bob, &protocol.RoomJoin{Code: "room1"})
	s.lastOfType(bob, protocol.TypeRoomJoined)

	// Step 2: Both ready, host starts
	s.app.Hub.Dispatch(alice, &protocol.RoomReady{Ready: true})
	s.app.Hub.Dispatch(bob, &protocol.RoomReady{Ready: true})
	s.app.Hub.Dispatch(alice, &protocol.RoomStart{})

	start := s.lastOfType(bob, protocol.TypeGameStart)
	s.InDelta(4242, start["seed"], 0)
	expectedStart := s.app.MockClock.Now().Add(3 * time.Second).UnixMilli()
	s.InDelta(float64(expectedStart), start["startAt"], 0)

	// Step 3: Alternate claims through the whole activity
	for n := 1; n <= model.ActivityLength; n++ {
		ch := alice
		if n%2 == 0 {
			ch = bob
		}
		s.app.Hub.Dispatch(ch, &protocol.GameProgress{Found: n})
	}

	// the member who claims the final marker wins
	over := s.lastOfType(alice, protocol.TypeGameOver)
	s.Equal(bobID, over["winner"])
	scores := over["scores"].([]any)
	s.Require().Len(scores, 2)
	s.Equal(aliceID, scores[0].(map[string]any)["id"])
	s.InDelta(model.ActivityLength/2, scores[0].(map[string]any)["score"], 0)
	s.InDelta(model.ActivityLength/2, scores[1].(map[string]any)["score"], 0)

	identity := s.app.Registry.Lookup(s.ctx, model.IdentityToken(aliceID))
	s.Require().NotNil(identity)
	rm, err := s.app.RoomController.Get(s.ctx, identity.RoomID)
	s.Require().NoError(err)
	s.False(rm.Started)
	s.Equal(model.ActivityLength+1, rm.CurrentTarget)
}

// Test: Matchmaking pairs the two oldest queued identities into a room
func (s *IntegrationSuite) TestQueuePairsIntoRoom() {
	s.app.MockRandom.QueueString("MATCH")

	alice, aliceID := s.hello("c1", "", "alice")
	bob, bobID := s.hello("c2", "", "bob")

	s.app.Hub.Dispatch(alice, &protocol.QueueJoin{})
	s.Equal(1, s.app.Queue.Len())
	s.app.Hub.Dispatch(bob, &protocol.QueueJoin{})
	s.Equal(0, s.app.Queue.Len())

	match := s.lastOfType(bob, protocol.TypeMatchFound)
	s.Equal("MATCH", match["code"])
	s.Equal(aliceID, match["hostId"])

	members, ok := match["members"].([]any)
	s.Require().True(ok)
	s.Require().Len(members, 2)
	s.Equal(bobID, members[1].(map[string]any)["id"])
}

// Test: Health reports live counts through the wired router
func (s *IntegrationSuite) TestHealthThroughRouter() {
	alice, _ := s.hello("c1", "", "alice")
	s.hello("c2", "", "bob")
	s.app.Hub.Dispatch(alice, &protocol.QueueJoin{})

	rr := httptest.NewRecorder()
	s.app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rr.Code)

	var resp api.HealthResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal("ok", resp.Status)
	s.Equal(0, resp.Connections)
	s.Equal(2, resp.Stats.Online)
	s.Equal(2, resp.Stats.Identities)
	s.Equal(1, resp.Stats.Queued)
	s.Equal(0, resp.Stats.Rooms)
}

// Test: Disconnect keeps the identity and its room membership
func (s *IntegrationSuite) TestDisconnectKeepsRoomMembership() {
	s.app.MockRandom.QueueString("ROOM1")

	alice, aliceID := s.hello("c1", "alice-token", "alice")
	bob, _ := s.hello("c2", "bob-token", "bob")
	s.app.Hub.Dispatch(alice, &protocol.RoomCreate{})
	s.app.Hub.Dispatch(bob, &protocol.RoomJoin{Code: "ROOM1"})
	bob.Reset()

	s.app.Hub.Disconnect(alice)

	state := s.lastOfType(bob, protocol.TypeRoomState)
	members := state["members"].([]any)
	s.Require().Len(members, 2)
	first := members[0].(map[string]any)
	s.Equal(aliceID, first["id"])
	s.Equal(false, first["online"])

	identity := s.app.Registry.Lookup(s.ctx, model.IdentityToken(aliceID))
	s.Require().NotNil(identity)
	s.False(identity.Online)
	s.True(identity.InRoom())
}
