package resources

import (
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// tabDocument is the entity field holding the tab's rich-text document.
const tabDocument = "data"

type tabForm struct {
	Title string `form:"title" validate:"required"`
	Note  string `form:"note"`
	Icon  string `form:"icon"`
	CIcon string `form:"cicon"`
	Show  string `form:"show"`
}

var tabMessages = Messages{
	"title.required": "Please enter the tab title",
}

func tabs(opts Options) (*resource.Manager, error) {
	m, err := newManager(opts, resource.Descriptor{
		Name:    "tab",
		Title:   "Tabs",
		IDField: "tbid",
		Fields: []view.Field{
			{Name: "title", Label: "Title", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "icon", Label: "Icon", Type: view.Text},
			{Name: "cicon", Label: "Active icon", Type: view.Text},
			{Name: "show", Label: "Open by default", Type: view.Checkbox},
		},
		Orderable: true,
		Deletable: true,
		ToPayload: tabPayload,
	})
	if err != nil {
		return nil, err
	}
	m.EditPage().Form.Attach(tabDocument, view.NewDocument())
	return m, nil
}

func tabPayload(f *view.Form, isNew bool) resource.Payload {
	if f.WidgetErr() != nil {
		return resource.Invalid("The tab content is not a valid document")
	}
	p := payload[tabForm](nil, tabMessages, nil)(f, isNew)
	if p.Err != "" {
		return p
	}
	if w := f.Widget(); w != nil {
		p.Data.Set(tabDocument, w.Get())
	}
	return p
}
