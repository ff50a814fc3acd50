package resources

import (
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

type userForm struct {
	Acc  string `form:"acc" validate:"required"`
	Name string `form:"name" validate:"required"`
	Note string `form:"note"`
	Su   string `form:"su"`
	Fz   string `form:"fz"`
	Pwd1 string `form:"pwd1"`
	Pwd2 string `form:"pwd2"`
}

var userMessages = Messages{
	"acc.required":  "Please enter the account",
	"name.required": "Please enter the name",
}

func users(opts Options) (*resource.Manager, error) {
	return newManager(opts, resource.Descriptor{
		Name:    "usermanage",
		Title:   "Users",
		IDField: "uid",
		Fields: []view.Field{
			{Name: "acc", Label: "Account", Type: view.Text},
			{Name: "name", Label: "Name", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "su", Label: "Administrator", Type: view.Checkbox},
			{Name: "fz", Label: "Frozen", Type: view.Checkbox},
			{Name: "pwd1", Label: "Password", Type: view.Password},
			{Name: "pwd2", Label: "Repeat password", Type: view.Password},
			{Name: "ut", Label: "Updated", Type: view.Text, Transform: view.TransformLocalTime, ReadOnly: true},
		},
		Deletable: true,
		ToPayload: userPayload,
	})
}

// userPayload posts the password as "pwd" and only when one was entered.
// New accounts must have one. The repeat is only compared to a new password. The password inputs are cleared once read.
func userPayload(f *view.Form, isNew bool) resource.Payload {
	p := payload[userForm](nil, userMessages, func(u *userForm, isNew bool) string {
		switch {
		case isNew && u.Pwd1 == "":
			return "Please enter the password"
		case u.Pwd1 != "" && u.Pwd2 != u.Pwd1:
			return userMessages.message("pwd2", "eqfield", "pwd1")
		}
		return ""
	})(f, isNew)
	f.SetValue("pwd1", "")
	f.SetValue("pwd2", "")
	if p.Err != "" {
		return p
	}
	if pwd := p.Data.Get("pwd1"); pwd != "" {
		p.Data.Set("pwd", pwd)
	}
	p.Data.Del("pwd1")
	p.Data.Del("pwd2")
	return p
}
