package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var errQuit = errors.New("quit")

// closeWait bounds how long play waits for the server to finish after it
// sends its close frame
const closeWait = 5 * time.Second

func newPlayCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Connect to the relay and play interactively",
		Long: `Connect over websocket, say hello, and optionally create, join or queue
for a room. Commands are then read from stdin, one per line:

  ready / unready      toggle your ready flag
  start                start the game (host only)
  found N              claim marker N
  create [nick]        create a room
  join CODE [nick]     join a room by code
  queue / unqueue      join or leave matchmaking
  leave                leave the current room
  quit                 disconnect

Server events are printed as they arrive. The session id is saved so the
next run resumes the same identity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			wsURL, err := client.WebsocketURL()
			if err != nil {
				return err
			}
			opts.URL = wsURL
			opts.SessionID = cfg.SessionID
			opts.ResumeKey = cfg.ResumeKey
			opts.OnHello = func(sessionID, resumeKey string) {
				if err := cfg.SaveSession(sessionID, resumeKey); err != nil && cfg.Verbose {
					fmt.Fprintf(os.Stderr, "could not save session: %v\n", err)
				}
			}
			return runPlay(ctx, opts, cmd.InOrStdin(), NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&opts.Nick, "nick", "", "Display name")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create a room after connecting")
	cmd.Flags().StringVar(&opts.Join, "join", "", "Join the room with this code after connecting")
	cmd.Flags().BoolVar(&opts.Queue, "queue", false, "Join matchmaking after connecting")
	cmd.MarkFlagsMutuallyExclusive("create", "join", "queue")

	return cmd
}

type playOptions struct {
	URL       string
	SessionID string
	ResumeKey string
	Nick      string
	Create    bool
	Join      string
	Queue     bool
	// OnHello is called with the identity the server established
	OnHello func(sessionID, resumeKey string)
}

// Event is one message received from the relay
type Event struct {
	Type   string
	Fields map[string]any
	Raw    json.RawMessage
}

func parseEvent(data []byte) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, err
	}
	typ, _ := fields["type"].(string)
	return Event{Type: typ, Fields: fields, Raw: json.RawMessage(data)}, nil
}

// parseCommand turns one stdin line into an outbound message. Blank lines
// yield nil.
func parseCommand(line string) (map[string]any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "ready":
		return map[string]any{"type": "room:ready", "ready": true}, nil
	case "unready":
		return map[string]any{"type": "room:ready", "ready": false}, nil
	case "start":
		return map[string]any{"type": "room:start"}, nil
	case "found":
		if len(args) != 1 {
			return nil, errors.New("usage: found N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid marker %q", args[0])
		}
		return map[string]any{"type": "game:progress", "found": n}, nil
	case "create":
		msg := map[string]any{"type": "room:create"}
		if len(args) > 0 {
			msg["nick"] = strings.Join(args, " ")
		}
		return msg, nil
	case "join":
		if len(args) < 1 {
			return nil, errors.New("usage: join CODE [nick]")
		}
		msg := map[string]any{"type": "room:join", "code": args[0]}
		if len(args) > 1 {
			msg["nick"] = strings.Join(args[1:], " ")
		}
		return msg, nil
	case "queue":
		return map[string]any{"type": "queue:join"}, nil
	case "unqueue":
		return map[string]any{"type": "queue:leave"}, nil
	case "leave":
		return map[string]any{"type": "room:leave"}, nil
	case "quit", "exit":
		return nil, errQuit
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func (o playOptions) initialMessages() []map[string]any {
	hello := map[string]any{"type": "hello"}
	if o.SessionID != "" {
		hello["sessionId"] = o.SessionID
	}
	if o.Nick != "" {
		hello["nick"] = o.Nick
	}
	if o.ResumeKey != "" {
		hello["resumeKey"] = o.ResumeKey
	}
	msgs := []map[string]any{hello}

	switch {
	case o.Create:
		msgs = append(msgs, map[string]any{"type": "room:create"})
	case o.Join != "":
		msgs = append(msgs, map[string]any{"type": "room:join", "code": o.Join})
	case o.Queue:
		msgs = append(msgs, map[string]any{"type": "queue:join"})
	}
	return msgs
}

// runPlay drives one interactive session until stdin ends, the user quits,
// ctx is cancelled or the server closes the connection
func runPlay(ctx context.Context, opts playOptions, in io.Reader, out *Output) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, msg := range opts.initialMessages() {
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- readEvents(conn, opts, out)
	}()

	done := make(chan struct{})
	defer close(done)
	lines := scanLines(in, done)

	for {
		select {
		case err := <-readErr:
			return closeResult(err, out)

		case <-ctx.Done():
			return closeAndWait(conn, readErr, out)

		case line, ok := <-lines:
			if !ok {
				return closeAndWait(conn, readErr, out)
			}
			msg, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				return closeAndWait(conn, readErr, out)
			}
			if err != nil {
				out.PrintError(err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

// scanLines feeds lines from in until it ends or done is closed. The
// returned channel is closed when the scanner stops.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func readEvents(conn *websocket.Conn, opts playOptions, out *Output) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := parseEvent(data)
		if err != nil {
			continue
		}
		if ev.Type == "hello" && opts.OnHello != nil {
			sessionID, _ := ev.Fields["sessionId"].(string)
			resumeKey, _ := ev.Fields["resumeKey"].(string)
			opts.OnHello(sessionID, resumeKey)
		}
		out.Print(ev)
	}
}

// closeAndWait starts the close handshake and drains events until the
// server finishes it
func closeAndWait(conn *websocket.Conn, readErr <-chan error, out *Output) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return nil
	}
	select {
	case err := <-readErr:
		return closeResult(err, out)
	case <-time.After(closeWait):
		return nil
	}
}

func closeResult(err error, out *Output) error {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return fmt.Errorf("connection lost: %w", err)
	}
	if out.format != "json" {
		fmt.Fprintf(out.w, "Disconnected (%d %s)\n", closeErr.Code, closeErr.Text)
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		return nil
	default:
		return fmt.Errorf("closed by server: %d %s", closeErr.Code, closeErr.Text)
	}
}

func (o *Output) printEvent(ev Event) {
	f := ev.Fields
	switch ev.Type {
	case "hello":
		fmt.Fprintf(o.w, "Connected as %v\n", f["sessionId"])
	case "room:created", "room:joined", "match:found":
		fmt.Fprintf(o.w, "%s: room %v, host %v, %s\n", ev.Type, f["code"], f["hostId"], memberList(f["members"]))
	case "room:state":
		fmt.Fprintf(o.w, "room:state: %s\n", memberList(f["members"]))
	case "room:left":
		fmt.Fprintln(o.w, "Left room")
	case "queue:ok":
		fmt.Fprintln(o.w, "Waiting for an opponent")
	case "queue:left":
		fmt.Fprintln(o.w, "Left the queue")
	case "game:start":
		fmt.Fprintf(o.w, "game:start: seed %v at %v\n", jsonNumber(f["seed"]), startTime(f["startAt"]))
	case "game:resume":
		fmt.Fprintf(o.w, "game:resume: seed %v, target %v\n", jsonNumber(f["seed"]), jsonNumber(f["currentTarget"]))
	case "game:progress":
		fmt.Fprintf(o.w, "game:progress: %v found %v, next %v\n", f["from"], jsonNumber(f["found"]), jsonNumber(f["currentTarget"]))
	case "game:over":
		fmt.Fprintf(o.w, "game:over: winner %v\n", f["winner"])
	case "room:error", "error":
		fmt.Fprintf(o.w, "%s: %v\n", ev.Type, f["message"])
	default:
		fmt.Fprintln(o.w, string(ev.Raw))
	}
}

func memberList(v any) string {
	members, _ := v.([]any)
	names := make([]string, 0, len(members))
	for _, m := range members {
		fields, _ := m.(map[string]any)
		name, _ := fields["nick"].(string)
		if name == "" {
			name, _ = fields["id"].(string)
		}
		if ready, _ := fields["ready"].(bool); ready {
			name += "*"
		}
		if online, _ := fields["online"].(bool); !online {
			name += " (offline)"
		}
		names = append(names, name)
	}
	return "members: " + strings.Join(names, ", ")
}

func jsonNumber(v any) string {
	if n, ok := v.(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func startTime(v any) string {
	ms, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	return time.UnixMilli(int64(ms)).Format(time.TimeOnly)
}
