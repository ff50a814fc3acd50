package console

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	admin "github.com/rflorenc/mapsite-admin"
	"github.com/rflorenc/mapsite-admin/internal/lookup"
	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform/platformtest"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

func newConsole(t *testing.T) (*Console, *platformtest.Backend) {
	t.Helper()
	be := platformtest.New()
	t.Cleanup(be.Close)
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	c, err := New(Options{
		Backend:  be.Settings(),
		BasePath: "/admin/",
		Renderer: view.NewRenderer(admin.TemplatesFS()),
		Log:      log,
	})
	require.NoError(t, err)
	return c, be
}

func login(t *testing.T, c *Console) {
	t.Helper()
	ctx := context.Background()
	_, err := c.Visit(ctx, "/admin/login", true)
	require.NoError(t, err)
	c.Dispatch(ctx, view.Event{Action: ActLogin, Values: url.Values{"acc": {"admin"}, "pwd": {"secret"}}})
	require.True(t, c.Snapshot().Auth)
}

func pageNames(s Snapshot) []string {
	var out []string
	for _, p := range s.Pages {
		out = append(out, p.Name)
	}
	return out
}

func noticeTexts(s Snapshot) []string {
	var out []string
	for _, n := range s.Notices {
		out = append(out, n.Text)
	}
	return out
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStart_WithoutSession(t *testing.T) {
	c, _ := newConsole(t)
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.False(t, c.Snapshot().Auth)
	assert.Equal(t, "/admin", c.Base())
}

func TestLogin_ReturnsToRequestedPath(t *testing.T) {
	c, _ := newConsole(t)
	ctx := context.Background()

	path, err := c.Visit(ctx, "/admin/config", true)
	require.NoError(t, err)
	assert.Equal(t, "/login", path)
	snap := c.Snapshot()
	assert.False(t, snap.Auth)
	assert.Equal(t, []string{PageLogin}, pageNames(snap))

	c.Dispatch(ctx, view.Event{Action: ActLogin, Values: url.Values{"acc": {"admin"}, "pwd": {"nope"}}})
	snap = c.Snapshot()
	assert.Equal(t, []string{"Wrong account or password"}, noticeTexts(snap))
	assert.Equal(t, "/login", snap.Current)
	require.Len(t, snap.Pages, 1)
	for _, f := range snap.Pages[0].Fields {
		if f.Name == "acc" {
			assert.Equal(t, "admin", f.Value)
		}
		if f.Name == "pwd" {
			assert.Empty(t, f.Value)
		}
	}

	c.Dispatch(ctx, view.Event{Action: ActLogin, Values: url.Values{"acc": {"admin"}, "pwd": {"secret"}}})
	snap = c.Snapshot()
	assert.True(t, snap.Auth)
	assert.Equal(t, "/config", snap.Current)
	assert.Equal(t, []string{"config"}, pageNames(snap))
	assert.Equal(t, "Administrator", c.Resolve("user", "1"))
}

func TestLogin_DefaultsHome(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	snap := c.Snapshot()
	assert.Equal(t, Home, snap.Current)
	assert.Equal(t, []string{"layer"}, pageNames(snap))
	assert.Equal(t, "Layers", snap.Pages[0].Title)
}

func TestLogin_SkippedWhenAuthenticated(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	path, err := c.Visit(context.Background(), "/admin/login", true)
	require.NoError(t, err)
	assert.Equal(t, Home, path)
}

func TestVisit_ActiveRouteNeedsReload(t *testing.T) {
	c, be := newConsole(t)
	login(t, c)
	ctx := context.Background()
	be.ResetHits()

	_, err := c.Visit(ctx, "/admin/layer", false)
	require.NoError(t, err)
	assert.Equal(t, 0, be.Hits("GET /api/layer/"))

	_, err = c.Visit(ctx, "/admin/layer", true)
	require.NoError(t, err)
	assert.Equal(t, 1, be.Hits("GET /api/layer/"))
}

func TestVisit_OutsideBase(t *testing.T) {
	c, _ := newConsole(t)
	_, err := c.Visit(context.Background(), "/elsewhere", true)
	assert.True(t, errors.Is(err, ErrOutsideBase))

	path, err := c.Visit(context.Background(), "/admin", true)
	require.NoError(t, err)
	assert.Equal(t, "/login", path, "root redirects home, which needs a session")
}

func TestNotFound(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	path, err := c.Visit(context.Background(), "/admin/nowhere", true)
	require.NoError(t, err)
	assert.Equal(t, "/nowhere", path)
	assert.Equal(t, []string{PageNotFound}, pageNames(c.Snapshot()))
}

func TestLeavingClearsLists(t *testing.T) {
	c, be := newConsole(t)
	be.Seed("map", models.Entity{"name": "OSM", "url": "https://tile"})
	login(t, c)
	ctx := context.Background()

	_, err := c.Visit(ctx, "/admin/map", true)
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap.Pages, 1)
	assert.Contains(t, snap.Pages[0].Markup, "OSM")

	_, err = c.Visit(ctx, "/admin/status", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, pageNames(c.Snapshot()))
	c.View(func(s *view.Screen, current string) {
		assert.Equal(t, "/status", current)
		assert.Empty(t, s.Page("map").Table.Markup)
	})
}

func TestEditForm_Snapshot(t *testing.T) {
	c, be := newConsole(t)
	id := be.Seed("layer", models.Entity{"name": "Roads", "opacity": 0.4, "color": "#ff0000", "show": true})
	login(t, c)

	_, err := c.Visit(context.Background(), "/admin/layer/"+strconv.Itoa(id), true)
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap.Pages, 1)
	p := snap.Pages[0]
	assert.Equal(t, "layer/edit", p.Name)
	assert.Equal(t, "layer.save", p.Action)
	assert.Equal(t, "layer.preview", p.PreviewAction)
	assert.Contains(t, p.Preview, "#ff0000")

	values := map[string]FieldView{}
	for _, f := range p.Fields {
		values[f.Name] = f
	}
	assert.Equal(t, "Roads", values["name"].Value)
	assert.True(t, values["show"].Checked)
}

func TestUploadPage_Snapshot(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	_, err := c.Visit(context.Background(), "/admin/attach/new", true)
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap.Pages, 1)
	assert.True(t, snap.Pages[0].Upload)
	assert.Empty(t, snap.Pages[0].Fields)
}

func TestLogout(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	require.Equal(t, "Administrator", c.Resolve("user", "1"))

	path, err := c.Visit(context.Background(), "/admin/logout", true)
	require.NoError(t, err)
	assert.Equal(t, "/login", path)
	assert.False(t, c.Snapshot().Auth)
	assert.Equal(t, lookup.Placeholder, c.Resolve("user", "1"))
}

func TestSnapshot_ConsumesNotices(t *testing.T) {
	c, _ := newConsole(t)
	c.View(func(s *view.Screen, _ string) {
		s.Notify(view.NoticeInfo, "hello")
	})
	assert.Equal(t, []string{"hello"}, noticeTexts(c.Snapshot()))
	assert.Empty(t, c.Snapshot().Notices)
}

func TestSnapshot_Nav(t *testing.T) {
	c, _ := newConsole(t)
	var paths []string
	for _, n := range c.Snapshot().Nav {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"/layer", "/map", "/link", "/tab", "/attach", "/usermanage", "/hook", "/config", "/user", "/status"}, paths)
}

func TestLogin_ReturnsToLayerList(t *testing.T) {
	c, be := newConsole(t)
	be.Seed("layer", models.Entity{"name": "Roads"})
	ctx := context.Background()

	path, err := c.Visit(ctx, "/admin/layer", true)
	require.NoError(t, err)
	assert.Equal(t, "/login", path)
	assert.Zero(t, c.cache.Len())

	c.Dispatch(ctx, view.Event{Action: ActLogin, Values: url.Values{"acc": {"admin"}, "pwd": {"secret"}}})
	snap := c.Snapshot()
	assert.True(t, snap.Auth)
	assert.Equal(t, "/layer", snap.Current)
	assert.Equal(t, []string{"layer"}, pageNames(snap))
	assert.Contains(t, snap.Pages[0].Markup, "Roads")
	assert.NotZero(t, c.cache.Len())
}

func TestGuard_FailureLeavesUnauthenticated(t *testing.T) {
	c, be := newConsole(t)
	login(t, c)
	be.SetDeny("GET /api/user", true)

	path, err := c.Visit(context.Background(), "/admin/map", true)
	require.NoError(t, err)
	assert.Equal(t, "/map", path)
	snap := c.Snapshot()
	assert.False(t, snap.Auth)
	assert.Equal(t, []string{"no permission"}, noticeTexts(snap))
	assert.Empty(t, snap.Pages)
}

func TestSave_ListsEvenWhenRefreshFails(t *testing.T) {
	c, be := newConsole(t)
	login(t, c)
	ctx := context.Background()
	_, err := c.Visit(ctx, "/admin/layer/new", true)
	require.NoError(t, err)
	be.SetDeny("GET /api/auth", true)

	save := view.Event{Action: "layer.save", Values: url.Values{"name": {"rivers"}}}
	assert.Equal(t, 1, c.Dispatch(ctx, save))
	snap := c.Snapshot()
	assert.Equal(t, "/layer", snap.Current)
	assert.Equal(t, []string{"no permission"}, noticeTexts(snap))
	assert.Equal(t, []string{"layer"}, pageNames(snap))
	assert.Contains(t, snap.Pages[0].Markup, "rivers")

	assert.Zero(t, c.Dispatch(ctx, save), "a second submit of the old form creates nothing")
	assert.Len(t, be.Items("layer"), 1)
}

func TestLeavingDropsBindings(t *testing.T) {
	c, be := newConsole(t)
	id := strconv.Itoa(be.Seed("layer", models.Entity{"name": "Roads"}))
	login(t, c)
	ctx := context.Background()

	_, err := c.Visit(ctx, "/admin/layer/"+id, true)
	require.NoError(t, err)
	_, err = c.Visit(ctx, "/admin/layer", true)
	require.NoError(t, err)
	be.ResetHits()

	assert.Zero(t, c.Dispatch(ctx, view.Event{Action: "layer.save", Values: url.Values{"name": {"hijack"}}}))
	assert.Zero(t, be.Hits("POST /api/layer/"+id))
	assert.Equal(t, "Roads", be.Items("layer")[0].String("name"))

	_, err = c.Visit(ctx, "/admin/status", true)
	require.NoError(t, err)
	assert.Zero(t, c.Dispatch(ctx, view.Event{Action: "layer.del", ID: id, Confirmed: true}))
	assert.Len(t, be.Items("layer"), 1)
}

func TestUploadOnlyList_HasNoEditRoutes(t *testing.T) {
	c, _ := newConsole(t)
	login(t, c)
	ctx := context.Background()

	path, err := c.Visit(ctx, "/admin/attach/5", true)
	require.NoError(t, err)
	assert.Equal(t, "/attach/5", path)
	assert.Equal(t, []string{PageNotFound}, pageNames(c.Snapshot()))

	_, err = c.Visit(ctx, "/admin/attach/new", true)
	require.NoError(t, err)
	snap := c.Snapshot()
	require.Len(t, snap.Pages, 1)
	assert.True(t, snap.Pages[0].Upload)
}
