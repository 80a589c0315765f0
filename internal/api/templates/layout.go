// Package templates holds the templ components behind the HTML debug page.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

const styles = `body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }`

// Layout wraps body in the page shell
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		p.text(title)
		p.raw(`</title><style>` + styles + `</style></head><body><h1>`)
		p.text(title)
		p.raw(`</h1>`)
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.raw(`</body></html>`)
		return p.err
	})
}

// page writes markup and escaped text, keeping the first error
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) textf(format string, args ...any) {
	p.text(fmt.Sprintf(format, args...))
}

// cell writes a td with an optional class
func (p *page) cell(class, s string) {
	if class == "" {
		p.raw(`<td>`)
	} else {
		p.raw(`<td class="` + class + `">`)
	}
	p.text(s)
	p.raw(`</td>`)
}

func (p *page) header(cols ...string) {
	p.raw(`<thead><tr>`)
	for _, c := range cols {
		p.raw(`<th>`)
		p.text(c)
		p.raw(`</th>`)
	}
	p.raw(`</tr></thead>`)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
