package view

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicyOnce sync.Once
	htmlPolicy     *bluemonday.Policy

	svgPolicyOnce sync.Once
	svgPolicy     *bluemonday.Policy
)

// SanitizeHTML cleans operator-supplied markup shown in lists.
func SanitizeHTML(raw string) string {
	htmlPolicyOnce.Do(func() {
		htmlPolicy = bluemonday.UGCPolicy()
	})
	return strings.TrimSpace(htmlPolicy.Sanitize(raw))
}

// SanitizeSVG keeps the small set of SVG shapes used for legends.
func SanitizeSVG(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	svgPolicyOnce.Do(func() {
		p := bluemonday.StrictPolicy()
		p.AllowElements("svg", "g", "rect", "circle", "path", "line", "title")
		p.AllowAttrs("xmlns", "viewBox", "width", "height", "class").OnElements("svg")
		for _, el := range []string{"rect", "circle", "path", "line"} {
			p.AllowAttrs(
				"x", "y", "width", "height", "cx", "cy", "r", "d",
				"x1", "y1", "x2", "y2", "fill", "fill-opacity",
				"stroke", "stroke-width", "stroke-opacity", "class",
			).OnElements(el)
		}
		svgPolicy = p
	})
	return strings.TrimSpace(svgPolicy.Sanitize(trimmed))
}
