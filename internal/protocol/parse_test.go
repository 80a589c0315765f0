package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mcoot/numberhunt/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"hello bare", `{"type":"hello"}`, &Hello{}},
		{"hello full", `{"type":"hello","sessionId":"abc","nick":"ann","resumeKey":"k"}`, &Hello{SessionID: "abc", Nick: "ann", ResumeKey: "k"}},
		{"queue join", `{"type":"queue:join"}`, &QueueJoin{}},
		{"queue leave", `{"type":"queue:leave"}`, &QueueLeave{}},
		{"room create", `{"type":"room:create","nick":"ann"}`, &RoomCreate{Nick: "ann"}},
		{"room join", `{"type":"room:join","code":"k7p2m"}`, &RoomJoin{Code: "k7p2m"}},
		{"room leave", `{"type":"room:leave"}`, &RoomLeave{}},
		{"room ready", `{"type":"room:ready","ready":true}`, &RoomReady{Ready: true}},
		{"room start", `{"type":"room:start"}`, &RoomStart{}},
		{"progress", `{"type":"game:progress","found":7}`, &GameProgress{Found: 7}},
		{"unknown", `{"type":"chat:say"}`, &Unknown{Type: "chat:say"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":`,
		`{}`,
		`{"type":5}`,
		`[1,2]`,
		`{"type":"game:progress","found":"seven"}`,
		`{"type":"room:ready","ready":"yes"}`,
	} {
		_, err := Parse([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestNewRoomErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{model.ErrRoomNotFound, CodeRoomNotFound},
		{fmt.Errorf("join: %w", model.ErrRoomStarted), CodeRoomStarted},
		{model.ErrRoomFull, CodeRoomFull},
		{model.ErrNotInRoom, CodeNotInRoom},
		{model.ErrNotHost, CodeNotHost},
		{model.ErrWrongSize, CodeWrongSize},
		{model.ErrNotAllReady, CodeNotAllReady},
		{errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		reply := NewRoomError(tt.err)
		assert.Equal(t, TypeRoomError, reply.Type)
		assert.Equal(t, tt.code, reply.Code)
		assert.NotEmpty(t, reply.Message)
		assert.Equal(t, reply.Message, ErrorMessage(tt.err))
	}
}

func TestMembersAndResume(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := model.NewIdentity("A", "ann", now)
	b := model.NewIdentity("B", "bob", now)
	a.Ready = true
	b.Online = false
	a.Claim(1)
	b.Claim(3)
	b.Claim(2)

	seed := uint32(42)
	startAt := now.Add(3 * time.Second)
	room := &model.Room{
		ID: "r1", Code: "K7P2M", HostID: "A",
		Members:       []model.IdentityToken{"A", "B"},
		Started:       true,
		Seed:          &seed,
		StartAt:       &startAt,
		CurrentTarget: 4,
	}
	lookup := func(tok model.IdentityToken) *model.Identity {
		return map[model.IdentityToken]*model.Identity{"A": a, "B": b}[tok]
	}

	members := MembersFromRoom(room, lookup)
	assert.Equal(t, []Member{
		{ID: "A", Nick: "ann", Ready: true, Online: true, IsHost: true},
		{ID: "B", Nick: "bob", Ready: false, Online: false, IsHost: false},
	}, members)

	resume := NewGameResume(room, "B", lookup)
	assert.Equal(t, TypeGameResume, resume.Type)
	assert.Equal(t, uint32(42), resume.Seed)
	assert.Equal(t, startAt.UnixMilli(), resume.StartAt)
	assert.Equal(t, 4, resume.CurrentTarget)
	assert.Equal(t, []int{2, 3}, resume.MyFoundNumbers)
	assert.Equal(t, []int{1}, resume.OpponentFoundNumbers)
	assert.Equal(t, []Score{{ID: "A", Score: 1}, {ID: "B", Score: 2}}, resume.Scores)

	data, err := json.Marshal(NewGameStart(room))
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"type":"game:start","roomId":"r1","seed":42,"startAt":%d}`, startAt.UnixMilli()), string(data))
}
