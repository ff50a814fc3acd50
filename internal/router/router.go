// Package router runs console navigation through ordered middleware chains.
//
// A route is a path pattern ("/layer/:id", "*") plus middleware. Navigating
// to a path resolves the first matching pattern, runs the exit hooks when the
// active path changes, then runs the route's chain. Each middleware either
// calls next (continue) or returns without it (short-circuit); a middleware
// may call Context.Redirect to replace the navigation.
package router

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Middleware is one step of a route chain.
type Middleware func(c *Context, next func())

// Context describes one navigation event. It is discarded once the chain returns.
type Context struct {
	Path   string
	Params map[string]string

	ctx      context.Context
	redirect string
}

// Context returns the navigation's context. It is cancelled when the next
// navigation starts.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Param returns a path parameter, or "".
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Redirect replaces the current navigation with path once the running
// middleware returns. The caller should not call next afterwards.
func (c *Context) Redirect(path string) {
	c.redirect = path
}

// Redirected reports whether a redirect was requested.
func (c *Context) Redirected() bool {
	return c.redirect != ""
}

type route struct {
	pattern  string
	segments []string
	chain    []Middleware
}

// Router dispatches navigation events. It is not safe for concurrent use;
// the owning console session serializes access.
type Router struct {
	base    string
	routes  []*route
	exits   []Middleware
	maxHops int
	log     logrus.FieldLogger

	active  *Context
	running bool
	pending string
	cancel  context.CancelFunc
}

// New creates a Router mounted under base (e.g. "/admin", or "" for none).
func New(base string, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{
		base:    strings.TrimRight(base, "/"),
		maxHops: 10,
		log:     log,
	}
}

// Handle registers a route. Patterns use ":name" for parameters and "*" for
// the catch-all; the first registered match wins.
func (r *Router) Handle(pattern string, mw ...Middleware) {
	r.routes = append(r.routes, &route{
		pattern:  pattern,
		segments: split(pattern),
		chain:    mw,
	})
}

// Exit registers hooks that run before any navigation that changes the active path.
func (r *Router) Exit(mw ...Middleware) {
	r.exits = append(r.exits, mw...)
}

// Current returns the active path, or "" before the first navigation.
func (r *Router) Current() string {
	if r.active == nil {
		return ""
	}
	return r.active.Path
}

// Navigate runs the pipeline for path and follows redirects. Called while
// another navigation is running, it queues path to run once the current
// chain returns. It returns the active path afterwards.
func (r *Router) Navigate(ctx context.Context, path string) string {
	if r.running {
		r.pending = path
		return r.Current()
	}
	r.running = true
	defer func() { r.running = false }()

	for hops := 0; path != ""; hops++ {
		if hops >= r.maxHops {
			r.log.WithField("path", path).Warn("redirect loop, navigation stopped")
			r.pending = ""
			break
		}
		path = r.dispatch(ctx, normalize(path))
		if path == "" && r.pending != "" {
			path, r.pending = r.pending, ""
		}
	}
	return r.Current()
}

// Redirect returns a middleware that sends the navigation elsewhere.
func Redirect(path string) Middleware {
	return func(c *Context, next func()) {
		c.Redirect(path)
	}
}

// Strip removes the base path from an incoming URL path. ok is false when
// the path is outside the base.
func (r *Router) Strip(p string) (string, bool) {
	if r.base == "" {
		return normalize(p), true
	}
	if p == r.base {
		return "/", true
	}
	if !strings.HasPrefix(p, r.base+"/") {
		return "", false
	}
	return normalize(strings.TrimPrefix(p, r.base)), true
}

// URL prefixes a console path with the base path.
func (r *Router) URL(p string) string {
	return r.base + normalize(p)
}

func (r *Router) dispatch(ctx context.Context, path string) string {
	rt, params := r.match(path)

	if r.cancel != nil {
		r.cancel()
	}
	navCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	c := &Context{Path: path, Params: params, ctx: navCtx}

	if prev := r.active; prev != nil && prev.Path != path && len(r.exits) > 0 {
		prev.ctx = navCtx
		prev.redirect = ""
		if !run(prev, r.exits) {
			r.log.WithField("path", path).Debug("navigation stopped by exit hook")
			return prev.redirect
		}
	}
	r.active = c

	if rt == nil {
		r.log.WithField("path", path).Debug("no route")
		return ""
	}
	r.log.WithFields(logrus.Fields{"path": path, "route": rt.pattern, "params": params}).Debug("enter")
	run(c, rt.chain)
	return c.redirect
}

func (r *Router) match(path string) (*route, map[string]string) {
	segs := split(path)
	for _, rt := range r.routes {
		if params, ok := matchSegments(rt.segments, segs); ok {
			return rt, params
		}
	}
	return nil, map[string]string{}
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	params := map[string]string{}
	if len(pattern) == 1 && pattern[0] == "*" {
		return params, true
	}
	if len(pattern) != len(segs) {
		return nil, false
	}
	for i, p := range pattern {
		switch {
		case strings.HasPrefix(p, ":"):
			v, err := url.PathUnescape(segs[i])
			if err != nil {
				v = segs[i]
			}
			params[p[1:]] = v
		case p != segs[i]:
			return nil, false
		}
	}
	return params, true
}

// run executes a chain and reports whether every step called next.
func run(c *Context, chain []Middleware) bool {
	completed := false
	var step func(i int)
	step = func(i int) {
		if i == len(chain) {
			completed = true
			return
		}
		called := false
		chain[i](c, func() {
			if called || c.redirect != "" {
				return
			}
			called = true
			step(i + 1)
		})
	}
	step(0)
	return completed
}

func split(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return "/" + strings.Join(split(p), "/")
}
