package resources

import (
	"context"

	"github.com/rflorenc/mapsite-admin/internal/ordering"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Row actions of hierarchical lists.
const (
	ActIndent  = "indent"
	ActOutdent = "outdent"
)

type linkForm struct {
	Name  string `form:"name" validate:"required"`
	Note  string `form:"note"`
	Title string `form:"title"`
	URL   string `form:"url"`
	Hide  string `form:"hide"`
}

var linkMessages = Messages{
	"name.required": "Please enter the link name",
}

func links(opts Options) (*resource.Manager, error) {
	m, err := newManager(opts, resource.Descriptor{
		Name:    "link",
		Title:   "Links",
		IDField: "lkid",
		Fields: []view.Field{
			{Name: "name", Label: "Name", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "title", Label: "Title", Type: view.Text},
			{Name: "url", Label: "URL", Type: view.Text},
			{Name: "hide", Label: "Hidden", Type: view.Checkbox},
		},
		Orderable:    true,
		Hierarchical: true,
		Deletable:    true,
		ToPayload:    payload[linkForm](nil, linkMessages, nil),
	})
	if err != nil {
		return nil, err
	}
	m.OrderCb = ordering.Normalize
	m.ListCb = func(ctx context.Context, p *view.Page) {
		p.Subs.Bind(m.Action(ActIndent), shift(m, (*ordering.Session).Indent))
		p.Subs.Bind(m.Action(ActOutdent), shift(m, (*ordering.Session).Outdent))
	}
	return m, nil
}

// shift applies a level change to a row of the running ordering session.
func shift(m *resource.Manager, op func(*ordering.Session, string) error) view.Handler {
	return func(ctx context.Context, ev view.Event) {
		if err := op(m.Ordering(), ev.ID); err != nil {
			m.Deps().Log.WithError(err).WithField("id", ev.ID).Debug("level change ignored")
			return
		}
		m.Rerender()
	}
}
