package protocol

import (
	"github.com/mcoot/numberhunt/internal/model"
)

// IdentityLookup resolves a member token to its identity, nil if unknown
type IdentityLookup func(model.IdentityToken) *model.Identity

// MembersFromRoom builds the ordered membership list of a room
func MembersFromRoom(room *model.Room, lookup IdentityLookup) []Member {
	members := make([]Member, 0, len(room.Members))
	for _, token := range room.Members {
		m := Member{
			ID:     string(token),
			IsHost: token == room.HostID,
		}
		if identity := lookup(token); identity != nil {
			m.Nick = identity.Nick
			m.Ready = identity.Ready
			m.Online = identity.Online
		}
		members = append(members, m)
	}
	return members
}

// NewRoomView builds a room:created, room:joined or match:found payload
func NewRoomView(msgType string, room *model.Room, lookup IdentityLookup) RoomView {
	return RoomView{
		Type:    msgType,
		RoomID:  string(room.ID),
		Code:    string(room.Code),
		HostID:  string(room.HostID),
		Members: MembersFromRoom(room, lookup),
	}
}

// NewRoomState builds a room:state payload
func NewRoomState(room *model.Room, lookup IdentityLookup) RoomState {
	return RoomState{
		Type:    TypeRoomState,
		RoomID:  string(room.ID),
		HostID:  string(room.HostID),
		Started: room.Started,
		Members: MembersFromRoom(room, lookup),
	}
}

// NewGameStart builds a game:start payload for a started room
func NewGameStart(room *model.Room) GameStart {
	msg := GameStart{Type: TypeGameStart, RoomID: string(room.ID)}
	if room.Seed != nil {
		msg.Seed = *room.Seed
	}
	if room.StartAt != nil {
		msg.StartAt = room.StartAt.UnixMilli()
	}
	return msg
}

// ScoresFromModel converts model scores
func ScoresFromModel(scores []model.Score) []Score {
	out := make([]Score, 0, len(scores))
	for _, s := range scores {
		out = append(out, Score{ID: string(s.ID), Score: s.Score})
	}
	return out
}

// ScoresForRoom computes every member's score in membership order
func ScoresForRoom(room *model.Room, lookup IdentityLookup) []Score {
	out := make([]Score, 0, len(room.Members))
	for _, token := range room.Members {
		s := Score{ID: string(token)}
		if identity := lookup(token); identity != nil {
			s.Score = identity.Score()
		}
		out = append(out, s)
	}
	return out
}

// NewGameProgress builds a game:progress broadcast from an accepted claim
func NewGameProgress(outcome *model.ProgressOutcome) GameProgressUpdate {
	return GameProgressUpdate{
		Type:          TypeGameProgress,
		From:          string(outcome.From),
		Found:         outcome.Found,
		CurrentTarget: outcome.CurrentTarget,
		Scores:        ScoresFromModel(outcome.Scores),
	}
}

// NewGameOver builds the completion broadcast
func NewGameOver(outcome *model.ProgressOutcome) GameOver {
	return GameOver{
		Type:   TypeGameOver,
		Winner: string(outcome.Winner),
		Scores: ScoresFromModel(outcome.Scores),
	}
}

// NewGameResume builds the resume payload for one reconnecting member
func NewGameResume(room *model.Room, self model.IdentityToken, lookup IdentityLookup) GameResume {
	msg := GameResume{
		Type:                 TypeGameResume,
		CurrentTarget:        room.CurrentTarget,
		MyFoundNumbers:       []int{},
		OpponentFoundNumbers: []int{},
		Scores:               ScoresForRoom(room, lookup),
	}
	if room.Seed != nil {
		msg.Seed = *room.Seed
	}
	if room.StartAt != nil {
		msg.StartAt = room.StartAt.UnixMilli()
	}
	if me := lookup(self); me != nil {
		msg.MyFoundNumbers = me.FoundNumbers()
	}
	for _, other := range room.Others(self) {
		if opp := lookup(other); opp != nil {
			msg.OpponentFoundNumbers = append(msg.OpponentFoundNumbers, opp.FoundNumbers()...)
		}
	}
	return msg
}

// NewAck builds a payload-free reply
func NewAck(msgType string) Ack {
	return Ack{Type: msgType}
}
