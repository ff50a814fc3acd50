package view

import (
	"context"
	"net/url"
	"sort"
)

// Event is an operator action on the screen: a button with an action name,
// an optional row id, the confirmation answer and the submitted form.
type Event struct {
	Action    string
	ID        string
	Confirmed bool
	Values    url.Values
}

// Handler reacts to an Event.
type Handler func(ctx context.Context, ev Event)

// Bindings routes actions to the handlers currently subscribed to them.
// Handlers of one action run in subscription order.
type Bindings struct {
	seq  int
	subs map[string]map[int]Handler
}

// NewBindings returns an empty action table.
func NewBindings() *Bindings {
	return &Bindings{subs: make(map[string]map[int]Handler)}
}

// Subscription is the handle of one bound handler.
type Subscription struct {
	b      *Bindings
	action string
	id     int
}

// Bind subscribes h to action. The handler stays bound until the returned
// Subscription is disposed.
func (b *Bindings) Bind(action string, h Handler) *Subscription {
	b.seq++
	if b.subs[action] == nil {
		b.subs[action] = make(map[int]Handler)
	}
	b.subs[action][b.seq] = h
	return &Subscription{b: b, action: action, id: b.seq}
}

// Dispose unbinds the handler. Disposing twice is a no-op.
func (s *Subscription) Dispose() {
	if s == nil || s.b == nil {
		return
	}
	delete(s.b.subs[s.action], s.id)
	if len(s.b.subs[s.action]) == 0 {
		delete(s.b.subs, s.action)
	}
	s.b = nil
}

// Count returns how many handlers are bound to action.
func (b *Bindings) Count(action string) int {
	return len(b.subs[action])
}

// Actions returns the bound action names, sorted.
func (b *Bindings) Actions() []string {
	out := make([]string, 0, len(b.subs))
	for a := range b.subs {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs every handler bound to ev.Action and returns how many ran.
// Handlers may bind or dispose while dispatching; the set is fixed on entry.
func (b *Bindings) Dispatch(ctx context.Context, ev Event) int {
	ids := make([]int, 0, len(b.subs[ev.Action]))
	for id := range b.subs[ev.Action] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[ev.Action][id]
	}
	for _, h := range handlers {
		h(ctx, ev)
	}
	return len(handlers)
}

// Group owns the subscriptions of one rendered view. Dispose drops them all
// and leaves the group ready for the next render.
type Group struct {
	b    *Bindings
	subs []*Subscription
}

// Group creates an empty owner bound to this action table.
func (b *Bindings) Group() *Group {
	return &Group{b: b}
}

// Bind subscribes h and records the handle in the group.
func (g *Group) Bind(action string, h Handler) *Subscription {
	s := g.b.Bind(action, h)
	g.subs = append(g.subs, s)
	return s
}

// Dispose disposes every subscription of the group.
func (g *Group) Dispose() {
	for _, s := range g.subs {
		s.Dispose()
	}
	g.subs = nil
}

// Len returns the number of live subscriptions in the group.
func (g *Group) Len() int {
	return len(g.subs)
}

// Confirmer asks the operator to approve a destructive action.
type Confirmer interface {
	Confirm(ev Event, prompt string) bool
}

// EventConfirmer accepts an action when the event carries the operator's
// confirmation, which the browser collects before submitting.
type EventConfirmer struct{}

func (EventConfirmer) Confirm(ev Event, prompt string) bool {
	return ev.Confirmed
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ev Event, prompt string) bool

func (f ConfirmFunc) Confirm(ev Event, prompt string) bool { return f(ev, prompt) }
