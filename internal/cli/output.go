package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	if ev, ok := data.(Event); ok {
		// one event per line so the stream stays parseable
		fmt.Fprintln(o.w, string(ev.Raw))
		return
	}
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case []RoomSummary:
		o.printRooms(v)
	case QueueListing:
		o.printQueue(v)
	case Event:
		o.printEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Stats       struct {
		Online     int `json:"online"`
		Identities int `json:"identities"`
		Rooms      int `json:"rooms"`
		Queued     int `json:"queued"`
	} `json:"stats"`
}

// DebugSnapshot is the part of /debug.json the CLI reads
type DebugSnapshot struct {
	Online int           `json:"online"`
	Rooms  []RoomSummary `json:"rooms"`
	Queue  []string      `json:"queue"`
}

// RoomSummary response type
type RoomSummary struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	HostID        string       `json:"hostId"`
	Started       bool         `json:"started"`
	CurrentTarget int          `json:"currentTarget"`
	Members       []RoomMember `json:"members"`
	Scores        []RoomScore  `json:"scores"`
}

// RoomMember response type
type RoomMember struct {
	ID     string `json:"id"`
	Nick   string `json:"nick"`
	Ready  bool   `json:"ready"`
	Online bool   `json:"online"`
	IsHost bool   `json:"isHost"`
}

// RoomScore response type
type RoomScore struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// QueueListing is the matchmaking queue, oldest first
type QueueListing []string

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Connections: %d\n", h.Connections)
	fmt.Fprintf(o.w, "Online: %d\n", h.Stats.Online)
	fmt.Fprintf(o.w, "Identities: %d\n", h.Stats.Identities)
	fmt.Fprintf(o.w, "Rooms: %d\n", h.Stats.Rooms)
	fmt.Fprintf(o.w, "Queued: %d\n", h.Stats.Queued)
}

func (o *Output) printRooms(rooms []RoomSummary) {
	if len(rooms) == 0 {
		fmt.Fprintln(o.w, "No rooms")
		return
	}
	for _, r := range rooms {
		state := "waiting"
		if r.Started {
			state = fmt.Sprintf("started, target %d", r.CurrentTarget)
		}
		fmt.Fprintf(o.w, "Room %s (%s) - %s\n", r.Code, r.ID, state)

		scores := make(map[string]int, len(r.Scores))
		for _, s := range r.Scores {
			scores[s.ID] = s.Score
		}
		for _, m := range r.Members {
			var flags []string
			if m.IsHost {
				flags = append(flags, "host")
			}
			if m.Ready {
				flags = append(flags, "ready")
			}
			if !m.Online {
				flags = append(flags, "offline")
			}
			suffix := ""
			if len(flags) > 0 {
				suffix = " [" + strings.Join(flags, ", ") + "]"
			}
			fmt.Fprintf(o.w, "  - %s (%s) found %d%s\n", m.Nick, m.ID, scores[m.ID], suffix)
		}
	}
}

func (o *Output) printQueue(q QueueListing) {
	fmt.Fprintf(o.w, "Queue (%d):\n", len(q))
	for i, id := range q {
		fmt.Fprintf(o.w, "  %d. %s\n", i+1, id)
	}
}
