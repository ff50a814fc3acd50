package view

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// RenderFunc renders data into markup.
type RenderFunc func(data map[string]interface{}) (string, error)

// Renderer loads pongo2 templates from a file system.
type Renderer struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
	ext       string
}

// NewRenderer creates a Renderer over fsys. Template names may omit the
// ".tpl" extension.
func NewRenderer(fsys fs.FS) *Renderer {
	registerFilters()
	return &Renderer{
		set:       pongo2.NewSet("console", pongo2.NewFSLoader(fsys)),
		templates: make(map[string]*pongo2.Template),
		ext:       ".tpl",
	}
}

// Template returns a RenderFunc for a template file.
func (r *Renderer) Template(name string) (RenderFunc, error) {
	tmpl, err := r.load(name)
	if err != nil {
		return nil, err
	}
	return execute(tmpl, name), nil
}

// Render renders a template file.
func (r *Renderer) Render(name string, data map[string]interface{}) (string, error) {
	fn, err := r.Template(name)
	if err != nil {
		return "", err
	}
	return fn(data)
}

func (r *Renderer) load(name string) (*pongo2.Template, error) {
	if r == nil || r.set == nil {
		return nil, errors.New("view: renderer is nil")
	}
	if !strings.HasSuffix(name, r.ext) {
		name += r.ext
	}
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("view: load template %q: %w", name, err)
	}
	r.templates[name] = tmpl
	return tmpl, nil
}

func execute(tmpl *pongo2.Template, name string) RenderFunc {
	return func(data map[string]interface{}) (string, error) {
		if data == nil {
			data = map[string]interface{}{}
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
			return "", fmt.Errorf("view: execute template %q: %w", name, err)
		}
		return buf.String(), nil
	}
}

var filtersOnce sync.Once

func registerFilters() {
	filtersOnce.Do(func() {
		filters := map[string]pongo2.FilterFunction{
			"sanitize": func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
				return pongo2.AsSafeValue(SanitizeHTML(in.String())), nil
			},
			"svg": func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
				return pongo2.AsSafeValue(SanitizeSVG(in.String())), nil
			},
		}
		for name, fn := range filters {
			if !pongo2.FilterExists(name) {
				pongo2.RegisterFilter(name, fn)
			}
		}
	})
}
