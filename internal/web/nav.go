package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

type NavLink struct {
	Label string
	URL   string
}

var DefaultNavLinks = []NavLink{
	{Label: "Home", URL: "/"},
	{Label: "Shop", URL: "/shop"},
	{Label: "Admin", URL: "/admin"},
}

func Navbar(links []NavLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<nav class="navbar"><ul>`)
		for _, l := range links {
			h.raw(`<li><a`)
			h.href(l.URL)
			h.raw(`>`)
			h.text(l.Label)
			h.raw(`</a></li>`)
		}
		h.raw(`</ul></nav>`)
		return h.err
	})
}
