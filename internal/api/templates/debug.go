package templates

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/mcoot/numberhunt/internal/relay"
	"github.com/mcoot/numberhunt/internal/transport"
)

// DebugData is everything the debug page shows
type DebugData struct {
	Snapshot    *relay.Snapshot
	Connections []transport.ConnInfo
}

// DebugPage renders the full debug page
func DebugPage(data DebugData) templ.Component {
	return Layout("numberhunt relay", Debug(data))
}

// Debug renders the relay state tables
func Debug(data DebugData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		snap := data.Snapshot
		p := &page{w: w}

		p.raw(`<p id="generated">`)
		p.textf("Generated %s, %d online", stamp(snap.GeneratedAt), snap.Online)
		p.raw(`</p>`)

		p.raw(`<h2>Rooms</h2><table id="rooms">`)
		p.header("Code", "Room", "Host", "Started", "Target", "Members")
		p.raw(`<tbody>`)
		for _, r := range snap.Rooms {
			p.raw(`<tr class="room" data-code="`)
			p.text(r.Code)
			p.raw(`">`)
			p.cell("code", r.Code)
			p.cell("", r.ID)
			p.cell("", r.HostID)
			p.cell("started", strconv.FormatBool(r.Started))
			p.cell("target", strconv.Itoa(r.CurrentTarget))
			p.cell("members", memberNames(r))
			p.raw(`</tr>`)
		}
		if len(snap.Rooms) == 0 {
			p.raw(`<tr class="empty"><td colspan="6">no rooms</td></tr>`)
		}
		p.raw(`</tbody></table>`)

		p.raw(`<h2>Identities</h2><table id="identities">`)
		p.header("Nick", "Token", "Online", "Room", "Found", "Last seen")
		p.raw(`<tbody>`)
		for _, i := range snap.Identities {
			p.raw(`<tr class="identity" data-id="`)
			p.text(i.ID)
			p.raw(`">`)
			p.cell("nick", i.Nick)
			p.cell("", i.ID)
			p.cell("online", strconv.FormatBool(i.Online))
			p.cell("", i.RoomID)
			p.cell("", strconv.Itoa(i.Found))
			p.cell("", stamp(i.LastSeen))
			p.raw(`</tr>`)
		}
		if len(snap.Identities) == 0 {
			p.raw(`<tr class="empty"><td colspan="6">no identities</td></tr>`)
		}
		p.raw(`</tbody></table>`)

		p.raw(`<h2>Queue</h2><ol id="queue">`)
		for _, token := range snap.Queue {
			p.raw(`<li>`)
			p.text(token)
			p.raw(`</li>`)
		}
		p.raw(`</ol>`)

		p.raw(`<h2>Connections</h2><table id="connections">`)
		p.header("Connection", "Session", "State", "Remote", "Opened")
		p.raw(`<tbody>`)
		for _, c := range data.Connections {
			p.raw(`<tr class="conn">`)
			p.cell("", c.ID)
			p.cell("", c.SessionID)
			p.cell("state", c.State)
			p.cell("", c.RemoteAddr)
			p.cell("", stamp(c.OpenedAt))
			p.raw(`</tr>`)
		}
		p.raw(`</tbody></table>`)

		return p.err
	})
}

func memberNames(r relay.RoomInfo) string {
	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		name := m.Nick
		if !m.Online {
			name += " (offline)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
