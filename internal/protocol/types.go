// Package protocol defines the JSON event vocabulary exchanged over the
// relay's websocket connections.
package protocol

// Message types, client to server and server to client
const (
	TypeHello        = "hello"
	TypeQueueJoin    = "queue:join"
	TypeQueueLeave   = "queue:leave"
	TypeQueueOK      = "queue:ok"
	TypeQueueLeft    = "queue:left"
	TypeMatchFound   = "match:found"
	TypeRoomCreate   = "room:create"
	TypeRoomCreated  = "room:created"
	TypeRoomJoin     = "room:join"
	TypeRoomJoined   = "room:joined"
	TypeRoomLeave    = "room:leave"
	TypeRoomLeft     = "room:left"
	TypeRoomReady    = "room:ready"
	TypeRoomState    = "room:state"
	TypeRoomStart    = "room:start"
	TypeRoomError    = "room:error"
	TypeGameStart    = "game:start"
	TypeGameProgress = "game:progress"
	TypeGameOver     = "game:over"
	TypeGameResume   = "game:resume"
	TypeError        = "error"
)

// Inbound messages

// Hello establishes or resumes an identity
type Hello struct {
	SessionID string `json:"sessionId,omitempty"`
	Nick      string `json:"nick,omitempty"`
	ResumeKey string `json:"resumeKey,omitempty"`
}

// QueueJoin asks to be matched with an opponent
type QueueJoin struct{}

// QueueLeave withdraws from matchmaking
type QueueLeave struct{}

// RoomCreate opens a new room with the sender as host
type RoomCreate struct {
	Nick string `json:"nick,omitempty"`
}

// RoomJoin joins an existing room by code
type RoomJoin struct {
	Code string `json:"code"`
	Nick string `json:"nick,omitempty"`
}

// RoomLeave leaves the current room
type RoomLeave struct{}

// RoomReady toggles the sender's ready flag
type RoomReady struct {
	Ready bool `json:"ready"`
}

// RoomStart starts the room's activity; host only
type RoomStart struct{}

// GameProgress claims a marker
type GameProgress struct {
	Found int `json:"found"`
}

// Unknown carries a message whose type the relay does not recognise
type Unknown struct {
	Type string
}

// Outbound messages

// Member is one entry of a room's ordered membership list
type Member struct {
	ID     string `json:"id"`
	Nick   string `json:"nick"`
	Ready  bool   `json:"ready"`
	Online bool   `json:"online"`
	IsHost bool   `json:"isHost"`
}

// Score is one member's claimed-marker count
type Score struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// HelloReply confirms the established identity
type HelloReply struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	ResumeKey string `json:"resumeKey,omitempty"`
}

// RoomView is the shared payload of room:created, room:joined and match:found
type RoomView struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Code    string   `json:"code"`
	HostID  string   `json:"hostId"`
	Members []Member `json:"members"`
}

// RoomState is broadcast whenever membership, readiness or liveness changes
type RoomState struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	HostID  string   `json:"hostId"`
	Started bool     `json:"started"`
	Members []Member `json:"members"`
}

// GameStart announces the shared seed and start time
type GameStart struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Seed    uint32 `json:"seed"`
	StartAt int64  `json:"startAt"` // unix millis
}

// GameProgressUpdate is broadcast for every accepted claim
type GameProgressUpdate struct {
	Type          string  `json:"type"`
	From          string  `json:"from"`
	Found         int     `json:"found"`
	CurrentTarget int     `json:"currentTarget"`
	Scores        []Score `json:"scores"`
}

// GameOver names the winner once the cursor passes the activity length
type GameOver struct {
	Type   string  `json:"type"`
	Winner string  `json:"winner"`
	Scores []Score `json:"scores"`
}

// GameResume brings a reconnecting member back into a running activity
type GameResume struct {
	Type                 string  `json:"type"`
	Seed                 uint32  `json:"seed"`
	StartAt              int64   `json:"startAt"`
	CurrentTarget        int     `json:"currentTarget"`
	MyFoundNumbers       []int   `json:"myFoundNumbers"`
	OpponentFoundNumbers []int   `json:"opponentFoundNumbers"`
	Scores               []Score `json:"scores"`
}

// Ack is a payload-free reply such as queue:ok or room:left
type Ack struct {
	Type string `json:"type"`
}

// ErrorReply reports a failure to the originating connection only
type ErrorReply struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
