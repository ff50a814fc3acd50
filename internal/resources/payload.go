package resources

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"

	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

var (
	decoder  = form.NewDecoder()
	encoder  = form.NewEncoder()
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Messages maps "field.tag" validation failures to operator-facing text.
type Messages map[string]string

func (m Messages) message(field, tag, param string) string {
	if msg, ok := m[field+"."+tag]; ok {
		return msg
	}
	switch tag {
	case "required":
		return fmt.Sprintf("Please enter %s", field)
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "eqfield":
		return "The two passwords differ"
	}
	return fmt.Sprintf("%s is invalid", field)
}

// bind decodes the form into dto, validates it and encodes it back into the
// values posted to the API. Empty fields listed in defaults are filled first.
func bind(f *view.Form, dto interface{}, defaults map[string]string, msgs Messages) (url.Values, string) {
	vals := f.Values()
	for k, d := range defaults {
		if strings.TrimSpace(vals.Get(k)) == "" {
			vals.Set(k, d)
		}
	}
	if err := decoder.Decode(dto, vals); err != nil {
		var derr form.DecodeErrors
		if errors.As(err, &derr) {
			fields := make([]string, 0, len(derr))
			for k := range derr {
				fields = append(fields, k)
			}
			sort.Strings(fields)
			return nil, msgs.message(fields[0], "invalid", "")
		}
		return nil, err.Error()
	}
	if err := validate.Struct(dto); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, msgs.message(verrs[0].Field(), verrs[0].Tag(), verrs[0].Param())
		}
		return nil, err.Error()
	}
	out, err := encoder.Encode(dto)
	if err != nil {
		return nil, err.Error()
	}
	return out, ""
}

// payload wraps bind into a descriptor conversion function. check, when set,
// runs on the decoded dto for rules that depend on the form mode.
func payload[T any](defaults map[string]string, msgs Messages, check func(dto *T, isNew bool) string) resource.ToPayloadFunc {
	return func(f *view.Form, isNew bool) resource.Payload {
		dto := new(T)
		data, msg := bind(f, dto, defaults, msgs)
		if msg == "" && check != nil {
			msg = check(dto, isNew)
		}
		if msg != "" {
			return resource.Invalid(msg)
		}
		return resource.Payload{Data: data}
	}
}
