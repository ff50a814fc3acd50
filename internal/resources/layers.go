package resources

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// ActPreview redraws the layer legend from the values being edited.
const ActPreview = "preview"

// Legend defaults of a layer without explicit styling.
const (
	defaultOpacity = "0.5"
	defaultColor   = "#3388ff"
	defaultMaxZoom = "18"
)

type layerForm struct {
	Name      string  `form:"name" validate:"required"`
	Note      string  `form:"note"`
	Attr      string  `form:"attr"`
	Token     string  `form:"token"`
	FillColor string  `form:"fillcolor"`
	Color     string  `form:"color"`
	Opacity   float64 `form:"opacity" validate:"gte=0,lte=1"`
	Show      string  `form:"show"`
	Hide      string  `form:"hide"`
	UV        string  `form:"uv"`
}

var layerMessages = Messages{
	"name.required":   "Please enter the layer name",
	"opacity.invalid": "Opacity must be a number",
	"opacity.gte":     "Opacity must be between 0 and 1",
	"opacity.lte":     "Opacity must be between 0 and 1",
}

func layers(opts Options) (*resource.Manager, error) {
	m, err := newManager(opts, resource.Descriptor{
		Name:    "layer",
		Title:   "Layers",
		IDField: "lyid",
		Fields: []view.Field{
			{Name: "name", Label: "Name", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "attr", Label: "Attribution", Type: view.Text},
			{Name: "token", Label: "Token", Type: view.Text},
			{Name: "fillcolor", Label: "Fill color", Type: view.Color},
			{Name: "color", Label: "Stroke color", Type: view.Color},
			{Name: "opacity", Label: "Opacity", Type: view.Range, Min: "0", Max: "1", Step: "0.05"},
			{Name: "show", Label: "Shown by default", Type: view.Checkbox},
			{Name: "hide", Label: "Hidden", Type: view.Checkbox},
			{Name: "uv", Label: "Count visits", Type: view.Checkbox},
			{Name: "ut", Label: "Updated", Type: view.Text, Transform: view.TransformLocalTime, ReadOnly: true},
		},
		Orderable: true,
		Deletable: true,
		ToPayload: payload[layerForm](map[string]string{"opacity": defaultOpacity}, layerMessages, nil),
	})
	if err != nil {
		return nil, err
	}
	m.AddCb = func(ctx context.Context, p *view.Page) {
		p.Form.SetValue("opacity", defaultOpacity)
		bindPreview(m, p)
	}
	m.EditCb = func(ctx context.Context, p *view.Page, ent models.Entity) {
		bindPreview(m, p)
	}
	return m, nil
}

func bindPreview(m *resource.Manager, p *view.Page) {
	p.Preview = Legend(p.Form)
	p.Subs.Bind(m.Action(ActPreview), func(ctx context.Context, ev view.Event) {
		if ev.Values != nil {
			p.Form.Load(ev.Values)
		}
		p.Preview = Legend(p.Form)
	})
}

// Legend renders the sanitized SVG swatch of a layer style.
func Legend(f *view.Form) string {
	opacity := f.Get("opacity")
	if _, err := strconv.ParseFloat(opacity, 64); err != nil {
		opacity = defaultOpacity
	}
	stroke := f.Get("color")
	if stroke == "" {
		stroke = defaultColor
	}
	fill := f.Get("fillcolor")
	if fill == "" {
		fill = stroke
	}
	svg := fmt.Sprintf(`<svg width="24" height="24" viewBox="0 0 24 24"><rect x="2" y="2" width="20" height="20" fill="%s" fill-opacity="%s" stroke="%s" stroke-width="2"/></svg>`,
		html.EscapeString(fill), html.EscapeString(opacity), html.EscapeString(stroke))
	return view.SanitizeSVG(svg)
}

type mapForm struct {
	Name         string `form:"name" validate:"required"`
	Note         string `form:"note"`
	Attr         string `form:"attr"`
	URL          string `form:"url"`
	Subdomains   string `form:"subdomains"`
	ErrorTileURL string `form:"errorTileUrl"`
	MaxZoom      int    `form:"maxZoom" validate:"gte=0,lte=18"`
	Hide         string `form:"hide"`
}

var mapMessages = Messages{
	"name.required":   "Please enter the map name",
	"maxZoom.invalid": "Max zoom must be a whole number",
	"maxZoom.gte":     "Max zoom must be between 0 and 18",
	"maxZoom.lte":     "Max zoom must be between 0 and 18",
}

func maps(opts Options) (*resource.Manager, error) {
	return newManager(opts, resource.Descriptor{
		Name:    "map",
		Title:   "Base maps",
		IDField: "mid",
		Fields: []view.Field{
			{Name: "name", Label: "Name", Type: view.Text},
			{Name: "note", Label: "Note", Type: view.TextArea},
			{Name: "attr", Label: "Attribution", Type: view.Text},
			{Name: "url", Label: "Tile URL", Type: view.Text},
			{Name: "subdomains", Label: "Subdomains", Type: view.Text},
			{Name: "errorTileUrl", Label: "Error tile URL", Type: view.Text},
			{Name: "maxZoom", Label: "Max zoom", Type: view.Number, Min: "0", Max: "18", Step: "1"},
			{Name: "hide", Label: "Hidden", Type: view.Checkbox},
		},
		Orderable: true,
		Deletable: true,
		ToPayload: payload[mapForm](map[string]string{"maxZoom": defaultMaxZoom}, mapMessages, nil),
	})
}
