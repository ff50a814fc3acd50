package view

import (
	"net/url"
	"strconv"
	"time"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// FieldType is the input kind of a form field.
type FieldType string

const (
	Text     FieldType = "text"
	Password FieldType = "password"
	Checkbox FieldType = "checkbox"
	Range    FieldType = "range"
	Color    FieldType = "color"
	TextArea FieldType = "textarea"
	Number   FieldType = "number"
)

// TransformLocalTime displays a stored RFC 3339 timestamp in local time.
const TransformLocalTime = "localtime"

// LocalTimeLayout is the display format of TransformLocalTime.
const LocalTimeLayout = "2006/01/02 15:04:05"

// Field declares one input of an edit form.
type Field struct {
	Name      string
	Label     string
	Type      FieldType
	Transform string
	Min, Max  string
	Step      string
	ReadOnly  bool
}

// Form is the state of an edit form: declared fields plus their current
// values. Values of undeclared keys are kept for read-only display.
type Form struct {
	Fields   []Field
	Location *time.Location

	values     map[string]string
	widget     RichText
	widgetName string
	widgetErr  error
}

// NewForm creates an empty form.
func NewForm(fields []Field) *Form {
	return &Form{Fields: fields, Location: time.Local, values: make(map[string]string)}
}

// Field returns the declaration of a field.
func (f *Form) Field(name string) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

// Clear empties every value and the attached rich-text widget.
func (f *Form) Clear() {
	f.values = make(map[string]string)
	f.widgetErr = nil
	if f.widget != nil {
		f.widget.Clear()
	}
}

// Attach binds a rich-text widget to the entity field name. The widget is
// cleared, set and loaded together with the form.
func (f *Form) Attach(name string, w RichText) {
	f.widgetName = name
	f.widget = w
}

// WidgetErr returns the error of the last widget update, if any.
func (f *Form) WidgetErr() error { return f.widgetErr }

func (f *Form) setWidget(doc string) {
	if f.widget == nil {
		return
	}
	f.widgetErr = f.widget.Set(doc)
}

// Widget returns the attached rich-text widget, or nil.
func (f *Form) Widget() RichText { return f.widget }

// WidgetName returns the value key of the attached widget.
func (f *Form) WidgetName() string { return f.widgetName }

// Set populates the form from an entity, applying field transforms.
func (f *Form) Set(e models.Entity) {
	for k := range e {
		if f.widget != nil && k == f.widgetName {
			f.setWidget(e.String(k))
			continue
		}
		fd, _ := f.Field(k)
		v := e.String(k)
		switch {
		case fd.Type == Checkbox:
			v = boolValue(e.Bool(k))
		case fd.Transform == TransformLocalTime:
			v = LocalTime(v, f.Location)
		}
		f.values[k] = v
	}
}

// SetValue sets one value.
func (f *Form) SetValue(name, value string) {
	f.values[name] = value
}

// Get returns the current value of a field.
func (f *Form) Get(name string) string {
	return f.values[name]
}

// Checked reports whether a checkbox is set.
func (f *Form) Checked(name string) bool {
	return f.values[name] != ""
}

// Load replaces the declared fields' values with submitted ones. An absent
// checkbox is unchecked.
func (f *Form) Load(submitted url.Values) {
	if _, ok := submitted[f.widgetName]; ok && f.widget != nil {
		f.setWidget(submitted.Get(f.widgetName))
	}
	for _, fd := range f.Fields {
		if fd.ReadOnly {
			continue
		}
		v := submitted.Get(fd.Name)
		if fd.Type == Checkbox {
			v = boolValue(v != "" && v != "0" && v != "false")
		}
		f.values[fd.Name] = v
	}
}

// Values returns the declared fields as form values.
func (f *Form) Values() url.Values {
	out := make(url.Values, len(f.Fields))
	for _, fd := range f.Fields {
		if fd.ReadOnly {
			continue
		}
		out.Set(fd.Name, f.values[fd.Name])
	}
	return out
}

// All returns every value, declared or not.
func (f *Form) All() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// LocalTime formats an RFC 3339 timestamp in loc. Values that do not parse
// are returned unchanged.
func LocalTime(v string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		if sec, nerr := strconv.ParseInt(v, 10, 64); nerr == nil && sec > 0 {
			t = time.Unix(sec, 0)
		} else {
			return v
		}
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(LocalTimeLayout)
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return ""
}
