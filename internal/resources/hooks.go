package resources

import (
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

type hookForm struct {
	Name    string `form:"name"`
	Note    string `form:"note"`
	Type    string `form:"type" validate:"max=32"`
	Disable string `form:"disable"`
}

var hookMessages = Messages{
	"type.max": "The render type is too long",
}

func hooks(opts Options) (*resource.Manager, error) {
	return newManager(opts, resource.Descriptor{
		Name:    "hook",
		Title:   "Hooks",
		IDField: "hid",
		Fields: []view.Field{
			{Name: "name", Label: "Name", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "type", Label: "Render type", Type: view.Text},
			{Name: "disable", Label: "Disabled", Type: view.Checkbox},
			{Name: "token", Label: "Download token", Type: view.Text, ReadOnly: true},
			{Name: "auth", Label: "Upload token", Type: view.Text, ReadOnly: true},
			{Name: "time", Label: "Updated", Type: view.Text, Transform: view.TransformLocalTime, ReadOnly: true},
		},
		Deletable: true,
		ToPayload: payload[hookForm](nil, hookMessages, nil),
	})
}
