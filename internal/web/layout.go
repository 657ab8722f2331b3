package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ContextProvider makes shared state available to the components rendered
// below it, the way the auth and cart contexts wrap the shop pages.
type ContextProvider func(ctx context.Context) context.Context

// Providers are the shop-wide dependencies of ShopLayout. They are supplied by
// the caller; nil fields fall back to no-ops.
type Providers struct {
	Auth ContextProvider
	Cart ContextProvider

	Navbar     templ.Component
	CartDrawer templ.Component
	Toaster    templ.Component
}

func noopProvider(ctx context.Context) context.Context { return ctx }

func (p Providers) withDefaults() Providers {
	if p.Auth == nil {
		p.Auth = noopProvider
	}
	if p.Cart == nil {
		p.Cart = noopProvider
	}
	if p.Navbar == nil {
		p.Navbar = Navbar(DefaultNavLinks)
	}
	if p.CartDrawer == nil {
		p.CartDrawer = templ.NopComponent
	}
	if p.Toaster == nil {
		p.Toaster = templ.NopComponent
	}
	return p
}

// ShopLayout wraps every shop page: a container holding the navigation and
// then the page itself, untouched. Children come from templ.WithChildren; use
// Wrap to pass them directly.
func ShopLayout(p Providers) templ.Component {
	p = p.withDefaults()

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)
		ctx = p.Cart(p.Auth(ctx))

		h := newHTMLWriter(ctx, w)
		h.raw(`<div class="shop-layout">`)
		h.component(p.Navbar)
		h.component(children)
		h.component(p.CartDrawer)
		h.component(p.Toaster)
		h.raw(`</div>`)
		return h.err
	})
}
