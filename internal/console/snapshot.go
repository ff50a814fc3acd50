package console

import (
	"strings"

	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/resources"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// NavItem is one entry of the console menu.
type NavItem struct {
	Path  string
	Title string
}

// FieldView is a form input ready for the layout template.
type FieldView struct {
	Name     string
	Label    string
	Type     string
	Min, Max string
	Step     string
	ReadOnly bool
	Value    string
	Checked  bool
}

// DocumentView is the rich-text editor of a form.
type DocumentView struct {
	Name  string
	Value string
}

// PageView is a visible page ready for the layout template.
type PageView struct {
	Name          string
	Title         string
	Mode          string
	ID            string
	Classes       string
	Markup        string
	Preview       string
	Action        string
	PreviewAction string
	Fields        []FieldView
	Document      *DocumentView
	Upload        bool
	Transfer      string
}

// Snapshot is the screen state rendered for one response.
type Snapshot struct {
	Base    string
	Auth    bool
	Current string
	Title   string
	Nav     []NavItem
	Notices []view.Notice
	Pages   []PageView
}

var sitePages = []NavItem{
	{Path: "/config", Title: "Site"},
	{Path: "/user", Title: "Profile"},
	{Path: "/status", Title: "Status"},
}

// Snapshot captures the visible pages and consumes the queued notices.
func (c *Console) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Base:    c.base,
		Auth:    c.screen.Auth,
		Current: c.router.Current(),
		Notices: c.screen.TakeNotices(),
	}
	for _, m := range c.resources.Registry.All() {
		snap.Nav = append(snap.Nav, NavItem{Path: "/" + m.Name(), Title: m.Descriptor().Title})
	}
	snap.Nav = append(snap.Nav, sitePages...)

	for _, p := range c.screen.Visible() {
		pv := c.pageView(p)
		if snap.Title == "" {
			snap.Title = pv.Title
		}
		snap.Pages = append(snap.Pages, pv)
	}
	return snap
}

func (c *Console) pageView(p *view.Page) PageView {
	pv := PageView{
		Name:    p.Name,
		Mode:    p.Mode,
		ID:      p.ID,
		Classes: p.Classes(),
		Markup:  p.Table.Markup,
		Preview: p.Preview,
	}

	name := strings.TrimSuffix(p.Name, "/edit")
	m, managed := c.resources.Registry.Get(name)
	switch {
	case p.Name == PageLogin:
		pv.Title, pv.Action = "Login", ActLogin
	case p.Name == resources.PageConfig:
		pv.Title, pv.Action = "Site", resources.ActConfigSave
	case p.Name == resources.PageProfile:
		pv.Title, pv.Action = "Profile", resources.ActProfileSave
	case p.Name == resources.PageStatus:
		pv.Title = "Status"
	case managed:
		pv.Title = m.Descriptor().Title
		if name != p.Name {
			pv.Action = m.Action(resource.ActSave)
			pv.Upload = m.Descriptor().NoEdit && p == c.resources.Uploader.Page()
		}
		if p.Preview != "" {
			pv.PreviewAction = m.Action(resources.ActPreview)
		}
	}

	if pv.Action == "" || pv.Upload {
		return pv
	}
	for _, fd := range p.Form.Fields {
		fv := FieldView{
			Name:     fd.Name,
			Label:    fd.Label,
			Type:     string(fd.Type),
			Min:      fd.Min,
			Max:      fd.Max,
			Step:     fd.Step,
			ReadOnly: fd.ReadOnly,
			Value:    p.Form.Get(fd.Name),
		}
		if fd.Type == view.Checkbox {
			fv.Checked = p.Form.Checked(fd.Name)
		}
		if fd.Type == view.Password {
			fv.Value = ""
		}
		pv.Fields = append(pv.Fields, fv)
	}
	if w := p.Form.Widget(); w != nil {
		pv.Document = &DocumentView{Name: p.Form.WidgetName(), Value: w.Get()}
	}
	return pv
}
