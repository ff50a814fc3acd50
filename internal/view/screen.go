// Package view holds the headless screen model of a console session: pages,
// rendered lists, edit forms, notices and the action bindings of each view.
package view

import (
	"sort"
	"strings"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// Page modes of an edit page.
const (
	ModeNew  = "new"
	ModeEdit = "edit"
)

// Notice kinds.
const (
	NoticeError      = "error"
	NoticePermission = "permission"
	NoticeInfo       = "info"
)

// Notice is a blocking message shown to the operator.
type Notice struct {
	Kind string
	Text string
}

// Row is one rendered list row.
type Row struct {
	ID     string
	Level  int
	Entity models.Entity
	// Names holds lookup-resolved display values keyed by field.
	Names map[string]string
}

// Table is the rendered output of a list view.
type Table struct {
	Markup string
	Rows   []Row
}

// Clear drops the rendered output.
func (t *Table) Clear() {
	t.Markup = ""
	t.Rows = nil
}

// Page is one screen of the console, shown or hidden as a whole.
type Page struct {
	Name    string
	Visible bool
	Mode    string
	// ID is the entity being edited, "" for a new one.
	ID      string
	Table   Table
	Form    *Form
	Preview string
	// Subs owns the bindings of the page's current render.
	Subs *Group

	classes map[string]bool
}

// AddClass sets a presentation flag such as "order".
func (p *Page) AddClass(c string) { p.classes[c] = true }

// RemoveClass clears a presentation flag.
func (p *Page) RemoveClass(c string) { delete(p.classes, c) }

// HasClass reports whether a presentation flag is set.
func (p *Page) HasClass(c string) bool { return p.classes[c] }

// Classes returns the flags, sorted and space separated.
func (p *Page) Classes() string {
	out := make([]string, 0, len(p.classes))
	for c := range p.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

// Screen is the whole screen model of one console session.
type Screen struct {
	Bindings *Bindings
	// Auth reflects the navigation bar state.
	Auth bool

	pages   map[string]*Page
	order   []string
	notices []Notice
}

// NewScreen returns an empty screen.
func NewScreen() *Screen {
	return &Screen{Bindings: NewBindings(), pages: make(map[string]*Page)}
}

// Page returns a page, creating it hidden on first use.
func (s *Screen) Page(name string) *Page {
	if p, ok := s.pages[name]; ok {
		return p
	}
	p := &Page{
		Name:    name,
		Form:    NewForm(nil),
		Subs:    s.Bindings.Group(),
		classes: make(map[string]bool),
	}
	s.pages[name] = p
	s.order = append(s.order, name)
	return p
}

// Lookup returns a page without creating it.
func (s *Screen) Lookup(name string) (*Page, bool) {
	p, ok := s.pages[name]
	return p, ok
}

// Pages returns every page in creation order.
func (s *Screen) Pages() []*Page {
	out := make([]*Page, len(s.order))
	for i, name := range s.order {
		out[i] = s.pages[name]
	}
	return out
}

// Visible returns the shown pages.
func (s *Screen) Visible() []*Page {
	var out []*Page
	for _, p := range s.Pages() {
		if p.Visible {
			out = append(out, p)
		}
	}
	return out
}

// HideAll hides every page.
func (s *Screen) HideAll() {
	for _, p := range s.pages {
		p.Visible = false
	}
}

// ClearTables drops the rendered output of every list view.
func (s *Screen) ClearTables() {
	for _, p := range s.pages {
		p.Table.Clear()
	}
}

// DisposeAll drops the action bindings of every page.
func (s *Screen) DisposeAll() {
	for _, p := range s.pages {
		p.Subs.Dispose()
	}
}

// Show makes one page visible and returns it.
func (s *Screen) Show(name string) *Page {
	p := s.Page(name)
	p.Visible = true
	return p
}

// Notify queues a notice.
func (s *Screen) Notify(kind, text string) {
	s.notices = append(s.notices, Notice{Kind: kind, Text: text})
}

// Notices returns queued notices without consuming them.
func (s *Screen) Notices() []Notice {
	return append([]Notice(nil), s.notices...)
}

// TakeNotices returns and drops queued notices.
func (s *Screen) TakeNotices() []Notice {
	out := s.notices
	s.notices = nil
	return out
}
