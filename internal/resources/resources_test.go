package resources

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/mapsite-admin/internal/lookup"
	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/platform/platformtest"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

const rowTemplate = `{% for row in rows %}{{ row.ID }}/{{ row.Level }}{% if row.Names.uid %}:{{ row.Names.uid }}{% endif %} {% endfor %}`

var testTemplates = fstest.MapFS{
	"layer.tpl":      {Data: []byte(rowTemplate)},
	"map.tpl":        {Data: []byte(rowTemplate)},
	"link.tpl":       {Data: []byte(rowTemplate)},
	"tab.tpl":        {Data: []byte(rowTemplate)},
	"attach.tpl":     {Data: []byte(rowTemplate)},
	"usermanage.tpl": {Data: []byte(rowTemplate)},
	"hook.tpl":       {Data: []byte(rowTemplate)},
	"status.tpl":     {Data: []byte(`{% for it in items %}{{ it.Key }}={{ it.Value }};{% endfor %}`)},
}

type fixture struct {
	be     *platformtest.Backend
	client *platform.Client
	screen *view.Screen
	router *router.Router
	set    *Set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{be: platformtest.New(), screen: view.NewScreen()}
	t.Cleanup(f.be.Close)

	f.client = platform.NewClient(f.be.Settings())
	require.NoError(t, f.client.Login(context.Background(), "admin", "secret"))
	f.router = router.New("", nil)

	set, err := Build(Options{
		Deps: resource.Deps{
			API:    f.client,
			Cache:  lookup.New(f.client, nil, lookup.DefaultCategories...),
			Screen: f.screen,
			Nav:    f.router,
		},
		Site:     f.client,
		Renderer: view.NewRenderer(testTemplates),
	})
	require.NoError(t, err)
	f.set = set

	f.router.Handle("/", router.Redirect("/layer"))
	f.router.Handle("/attach/new", set.Uploader.Show)
	f.router.Handle("/config", set.Site.Config)
	f.router.Handle("/user", set.Site.Profile)
	f.router.Handle("/status", set.Site.Status)
	for _, m := range set.Registry.All() {
		base := "/" + m.Name()
		f.router.Handle(base, m.List)
		f.router.Handle(base+"/new", m.Add)
		f.router.Handle(base+"/:id", m.Edit)
	}
	return f
}

func (f *fixture) nav(path string) {
	f.router.Navigate(context.Background(), path)
}

func (f *fixture) dispatch(action string, ev view.Event) int {
	ev.Action = action
	return f.screen.Bindings.Dispatch(context.Background(), ev)
}

func (f *fixture) manager(t *testing.T, name string) *resource.Manager {
	t.Helper()
	m, ok := f.set.Registry.Get(name)
	require.True(t, ok, name)
	return m
}

func (f *fixture) notices() []string {
	var out []string
	for _, n := range f.screen.TakeNotices() {
		out = append(out, n.Text)
	}
	return out
}

func markup(p *view.Page) []string {
	return strings.Fields(p.Table.Markup)
}

func toPayload(m *resource.Manager, values url.Values, isNew bool) resource.Payload {
	form := view.NewForm(m.Descriptor().Fields)
	form.Load(values)
	return m.Descriptor().ToPayload(form, isNew)
}

func TestBuild_RegistersAll(t *testing.T) {
	f := newFixture(t)
	var names []string
	for _, m := range f.set.Registry.All() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"layer", "map", "link", "tab", "attach", "usermanage", "hook"}, names)

	_, err := Build(Options{Deps: resource.Deps{API: f.client}})
	assert.Error(t, err, "renderer is required")
}

func TestUserPayload(t *testing.T) {
	m := newFixture(t).manager(t, "usermanage")
	tests := []struct {
		name    string
		values  url.Values
		isNew   bool
		wantErr string
		wantPwd string
	}{
		{"missing account", url.Values{"name": {"Bob"}, "pwd1": {"x"}, "pwd2": {"x"}}, true, "Please enter the account", ""},
		{"missing name", url.Values{"acc": {"bob"}, "pwd1": {"x"}, "pwd2": {"x"}}, true, "Please enter the name", ""},
		{"new without password", url.Values{"acc": {"bob"}, "name": {"Bob"}}, true, "Please enter the password", ""},
		{"passwords differ", url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd1": {"a"}, "pwd2": {"b"}}, true, "The two passwords differ", ""},
		{"new", url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd1": {"a"}, "pwd2": {"a"}}, true, "", "a"},
		{"edit keeps password", url.Values{"acc": {"bob"}, "name": {"Bob"}}, false, "", ""},
		{"edit differ", url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd1": {"a"}}, false, "The two passwords differ", ""},
		{"edit ignores repeat alone", url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd2": {"a"}}, false, "", ""},
		{"edit changes password", url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd1": {"c"}, "pwd2": {"c"}}, false, "", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := toPayload(m, tt.values, tt.isNew)
			assert.Equal(t, tt.wantErr, p.Err)
			if tt.wantErr != "" {
				assert.Nil(t, p.Data)
				return
			}
			assert.Equal(t, "bob", p.Data.Get("acc"))
			assert.Equal(t, tt.wantPwd, p.Data.Get("pwd"))
			assert.NotContains(t, p.Data, "pwd1")
			assert.NotContains(t, p.Data, "pwd2")
		})
	}
}

func TestUserPayload_ClearsPasswords(t *testing.T) {
	m := newFixture(t).manager(t, "usermanage")
	form := view.NewForm(m.Descriptor().Fields)
	form.Load(url.Values{"acc": {"bob"}, "name": {"Bob"}, "pwd1": {"a"}, "pwd2": {"b"}})
	p := m.Descriptor().ToPayload(form, false)
	assert.NotEmpty(t, p.Err)
	assert.Empty(t, form.Get("pwd1"))
	assert.Empty(t, form.Get("pwd2"))
	assert.Equal(t, "Bob", form.Get("name"))
}

func TestLayerPayload(t *testing.T) {
	m := newFixture(t).manager(t, "layer")
	tests := []struct {
		name        string
		values      url.Values
		wantErr     string
		wantOpacity string
	}{
		{"default opacity", url.Values{"name": {"roads"}}, "", "0.5"},
		{"explicit opacity", url.Values{"name": {"roads"}, "opacity": {"0.25"}}, "", "0.25"},
		{"bounds", url.Values{"name": {"roads"}, "opacity": {"1"}}, "", "1"},
		{"too opaque", url.Values{"name": {"roads"}, "opacity": {"1.5"}}, "Opacity must be between 0 and 1", ""},
		{"negative", url.Values{"name": {"roads"}, "opacity": {"-0.1"}}, "Opacity must be between 0 and 1", ""},
		{"not a number", url.Values{"name": {"roads"}, "opacity": {"half"}}, "Opacity must be a number", ""},
		{"no name", url.Values{"opacity": {"0.3"}}, "Please enter the layer name", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := toPayload(m, tt.values, true)
			assert.Equal(t, tt.wantErr, p.Err)
			if tt.wantErr == "" {
				assert.Equal(t, tt.wantOpacity, p.Data.Get("opacity"))
				assert.Equal(t, "roads", p.Data.Get("name"))
			}
		})
	}
}

func TestMapPayload(t *testing.T) {
	m := newFixture(t).manager(t, "map")
	p := toPayload(m, url.Values{"name": {"osm"}, "url": {"https://tile/{z}/{x}/{y}.png"}}, true)
	require.Empty(t, p.Err)
	assert.Equal(t, "18", p.Data.Get("maxZoom"))
	assert.Equal(t, "https://tile/{z}/{x}/{y}.png", p.Data.Get("url"))

	p = toPayload(m, url.Values{"name": {"osm"}, "maxZoom": {"0"}}, true)
	require.Empty(t, p.Err)
	assert.Equal(t, "0", p.Data.Get("maxZoom"))

	assert.Equal(t, "Max zoom must be between 0 and 18", toPayload(m, url.Values{"name": {"osm"}, "maxZoom": {"19"}}, true).Err)
	assert.Equal(t, "Max zoom must be a whole number", toPayload(m, url.Values{"name": {"osm"}, "maxZoom": {"1.5"}}, true).Err)
	assert.Equal(t, "Please enter the map name", toPayload(m, url.Values{}, true).Err)
}

func TestLegend(t *testing.T) {
	form := view.NewForm(nil)
	form.SetValue("color", "#ff0000")
	out := Legend(form)
	assert.Contains(t, out, `fill="#ff0000"`, "fill follows the stroke color")
	assert.Contains(t, out, `fill-opacity="0.5"`)

	form.SetValue("fillcolor", `"><script>x()</script>`)
	form.SetValue("opacity", "0.9")
	out = Legend(form)
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, `fill-opacity="0.9"`)
}

func TestLayer_PreviewAndSave(t *testing.T) {
	f := newFixture(t)
	f.nav("/layer/new")

	p := f.manager(t, "layer").EditPage()
	require.True(t, p.Visible)
	assert.Equal(t, "0.5", p.Form.Get("opacity"))
	assert.Contains(t, p.Preview, "<svg")

	n := f.dispatch("layer.preview", view.Event{Values: url.Values{"name": {"roads"}, "color": {"#00ff00"}, "opacity": {"0.8"}}})
	assert.Equal(t, 1, n)
	assert.Contains(t, p.Preview, `stroke="#00ff00"`)
	assert.Contains(t, p.Preview, `fill-opacity="0.8"`)

	f.dispatch("layer.save", view.Event{})
	assert.Empty(t, f.notices())
	items := f.be.Items("layer")
	require.Len(t, items, 1)
	assert.Equal(t, "roads", items[0].String("name"))
	assert.Equal(t, "0.8", items[0].String("opacity"))
	assert.Equal(t, "/layer", f.router.Current())
	assert.Equal(t, []string{"1/0"}, markup(f.manager(t, "layer").Page()))
}

func TestLink_IndentOutdent(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"home", "docs", "api"} {
		f.be.Seed("link", models.Entity{"name": name})
	}
	f.nav("/link")
	page := f.manager(t, "link").Page()
	assert.Equal(t, []string{"1/0", "2/0", "3/0"}, markup(page))

	f.dispatch("link.indent", view.Event{ID: "2"})
	assert.Equal(t, []string{"1/0", "2/0", "3/0"}, markup(page), "level changes need ordering mode")

	f.dispatch("link.order", view.Event{})
	f.dispatch("link.indent", view.Event{ID: "2"})
	f.dispatch("link.indent", view.Event{ID: "3"})
	f.dispatch("link.indent", view.Event{ID: "3"})
	assert.Equal(t, []string{"1/0", "2/1", "3/2"}, markup(page))

	f.dispatch("link.indent", view.Event{ID: "1"})
	assert.Equal(t, []string{"1/0", "2/1", "3/2"}, markup(page), "the first row cannot be indented")

	f.dispatch("link.outdent", view.Event{ID: "2"})
	assert.Equal(t, []string{"1/0", "2/0", "3/1"}, markup(page), "children follow their parent")

	f.dispatch("link.order.save", view.Event{})
	assert.Empty(t, f.notices())
	assert.Equal(t, 1, f.be.Hits("POST /api/link/order"))
	assert.Equal(t, []string{"1/0", "2/0", "3/1"}, markup(page))
	assert.False(t, page.HasClass("order"))
}

func TestTab_Document(t *testing.T) {
	f := newFixture(t)
	id := f.be.Seed("tab", models.Entity{"title": "About", "data": `{"ops":[{"insert":"hi"}]}`})
	f.nav("/tab/1")
	require.Equal(t, 1, id)

	m := f.manager(t, "tab")
	form := m.EditPage().Form
	require.NotNil(t, form.Widget())
	assert.Equal(t, `{"ops":[{"insert":"hi"}]}`, form.Widget().Get())

	f.dispatch("tab.save", view.Event{Values: url.Values{"title": {"About"}, "data": {"{oops"}}})
	assert.Equal(t, []string{"The tab content is not a valid document"}, f.notices())
	assert.Zero(t, f.be.Hits("POST /api/tab/1"))

	f.dispatch("tab.save", view.Event{Values: url.Values{"title": {"About us"}, "data": {`{"ops":[{"insert":"hello"}]}`}}})
	assert.Empty(t, f.notices())
	items := f.be.Items("tab")
	require.Len(t, items, 1)
	assert.Equal(t, "About us", items[0].String("title"))
	assert.Equal(t, `{"ops":[{"insert":"hello"}]}`, items[0].String("data"))

	f.nav("/tab/new")
	assert.Empty(t, form.Widget().Get(), "the new form starts with an empty document")
	f.dispatch("tab.save", view.Event{Values: url.Values{"note": {"x"}}})
	assert.Equal(t, []string{"Please enter the tab title"}, f.notices())
}

func TestHook_Save(t *testing.T) {
	f := newFixture(t)
	f.nav("/hook/new")
	f.dispatch("hook.save", view.Event{Values: url.Values{"name": {"wind"}, "type": {"geojson"}, "disable": {"1"}}})
	assert.Empty(t, f.notices())
	items := f.be.Items("hook")
	require.Len(t, items, 1)
	assert.Equal(t, "geojson", items[0].String("type"))
	assert.Equal(t, "1", items[0].String("disable"))
	assert.Equal(t, "/hook", f.router.Current())
}

func TestAttach_Upload(t *testing.T) {
	f := newFixture(t)
	f.nav("/attach/new")
	up := f.set.Uploader
	assert.True(t, up.Page().Visible)

	tr, err := up.Upload(context.Background(), nil, []platform.UploadFile{
		{Name: "a.txt", Content: strings.NewReader("hello")},
		{Name: "b.txt", Content: strings.NewReader("world")},
	})
	require.NoError(t, err)
	done, status := tr.Finished()
	assert.True(t, done)
	assert.Equal(t, "completed", status)
	assert.Contains(t, tr.LogsSince(0), "progress 100%")
	assert.Same(t, tr, up.Transfers().Get(tr.ID))

	assert.Equal(t, []string{"Upload complete"}, f.notices())
	assert.Equal(t, "/attach", f.router.Current())
	assert.Equal(t, []string{"1/0:Administrator", "2/0:Administrator"}, markup(f.manager(t, "attach").Page()))
	assert.Equal(t, "a.txt", f.be.Items("attach")[0].String("on"))
}

func TestAttach_UploadNothing(t *testing.T) {
	f := newFixture(t)
	tr, err := f.set.Uploader.Upload(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	_, status := tr.Finished()
	assert.Equal(t, "failed", status)
	assert.Zero(t, f.be.Hits("POST /api/attach/"))
}

func TestAttach_NoEditForm(t *testing.T) {
	f := newFixture(t)
	f.be.Seed("attach", models.Entity{"uid": float64(1), "on": "x.png"})
	f.nav("/attach/1")
	assert.Zero(t, f.be.Hits("GET /api/attach/1"))
	assert.Zero(t, f.screen.Bindings.Count("attach.save"))
}

func TestSite_Config(t *testing.T) {
	f := newFixture(t)
	f.nav("/config")
	p := f.screen.Page(PageConfig)
	assert.Equal(t, "Map", p.Form.Get("title"))

	f.dispatch(ActConfigSave, view.Event{Values: url.Values{"title": {"Atlas"}, "loadfs": {"lots"}}})
	assert.Equal(t, []string{"Preload size must be a whole number"}, f.notices())
	assert.Zero(t, f.be.Hits("POST /api/config/"))

	f.dispatch(ActConfigSave, view.Event{Values: url.Values{"title": {"Atlas"}, "loadfs": {"3"}, "cstats": {"on"}}})
	assert.Equal(t, []string{"Saved"}, f.notices())
	cfg, err := f.client.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Atlas", cfg.String("title"))
	assert.Equal(t, "3", cfg.String("loadfs"))
	assert.Equal(t, "1", cfg.String("cstats"))
}

func TestSite_Profile(t *testing.T) {
	f := newFixture(t)
	f.nav("/user")
	p := f.screen.Page(PageProfile)
	assert.Equal(t, "admin", p.Form.Get("acc"))
	assert.Equal(t, "Administrator", p.Form.Get("name"))

	f.dispatch(ActProfileSave, view.Event{Values: url.Values{"name": {"Root"}, "pwd": {"secret"}, "pwd1": {"n"}, "pwd2": {"m"}}})
	assert.Equal(t, []string{"The two passwords differ"}, f.notices())
	assert.Empty(t, p.Form.Get("pwd"), "password inputs are cleared")
	assert.Zero(t, f.be.Hits("POST /api/user"))

	f.dispatch(ActProfileSave, view.Event{Values: url.Values{"name": {"Root"}, "pwd": {"wrong"}}})
	assert.Equal(t, []string{"wrong password"}, f.notices())

	f.dispatch(ActProfileSave, view.Event{Values: url.Values{"name": {"Root"}, "pwd": {"secret"}, "pwd1": {"n3w"}, "pwd2": {"n3w"}}})
	assert.Empty(t, f.notices())
	assert.Equal(t, "/layer", f.router.Current())

	other := platform.NewClient(f.be.Settings())
	require.NoError(t, other.Login(context.Background(), "admin", "n3w"))
	user, err := other.CheckUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Root", user.String("name"))
}

func TestSite_Status(t *testing.T) {
	f := newFixture(t)
	f.nav("/status")
	p := f.screen.Page(PageStatus)
	assert.True(t, p.Visible)
	assert.Equal(t, "pv=10;uv=3;", p.Table.Markup)
}

func TestSite_SessionLost(t *testing.T) {
	f := newFixture(t)
	f.router.Handle("/login", func(c *router.Context, next func()) {})
	require.NoError(t, f.client.Logout(context.Background()))
	f.screen.Auth = true

	f.nav("/status")
	assert.False(t, f.screen.Auth)
	assert.Equal(t, "/login", f.router.Current())
}
