package resources

import (
	"context"
	"net/url"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Page names of the standalone site pages.
const (
	PageConfig  = "config"
	PageProfile = "user"
	PageStatus  = "status"
)

// Form actions of the standalone site pages.
const (
	ActConfigSave  = "config.save"
	ActProfileSave = "user.save"
)

// SiteAPI is the part of the API behind the site configuration, profile and
// status pages.
type SiteAPI interface {
	Config(ctx context.Context) (models.Entity, error)
	SaveConfig(ctx context.Context, form url.Values) (*platform.Result, error)
	CheckUser(ctx context.Context) (models.Entity, error)
	SaveProfile(ctx context.Context, form url.Values) (*platform.Result, error)
	Stats(ctx context.Context) (models.Entity, error)
}

type siteConfigForm struct {
	Title    string `form:"title"`
	Logo     string `form:"logo"`
	Lang     string `form:"lang"`
	Manifest string `form:"manifest"`
	Head     string `form:"head"`
	LoadFS   int    `form:"loadfs" validate:"gte=0"`
	CStats   string `form:"cstats"`
	Stats    string `form:"stats"`
	Link     string `form:"link"`
	Load     string `form:"load"`
}

var siteConfigMessages = Messages{
	"loadfs.invalid": "Preload size must be a whole number",
	"loadfs.gte":     "Preload size cannot be negative",
}

var siteConfigFields = []view.Field{
	{Name: "title", Label: "Site title", Type: view.Text},
	{Name: "logo", Label: "Logo", Type: view.Text},
	{Name: "lang", Label: "Language", Type: view.Text},
	{Name: "manifest", Label: "Manifest", Type: view.TextArea},
	{Name: "head", Label: "Extra head markup", Type: view.TextArea},
	{Name: "loadfs", Label: "Preload size", Type: view.Number, Min: "0"},
	{Name: "cstats", Label: "Client statistics", Type: view.Checkbox},
	{Name: "stats", Label: "Statistics", Type: view.Checkbox},
	{Name: "link", Label: "Show links", Type: view.Checkbox},
	{Name: "load", Label: "Loading screen", Type: view.Checkbox},
}

type profileForm struct {
	Name string `form:"name" validate:"required"`
	Pwd  string `form:"pwd" validate:"required"`
	Pwd1 string `form:"pwd1"`
	Pwd2 string `form:"pwd2" validate:"eqfield=Pwd1"`
}

var profileMessages = Messages{
	"name.required": "Please enter the name",
	"pwd.required":  "Please enter the current password",
}

var profileFields = []view.Field{
	{Name: "acc", Label: "Account", Type: view.Text, ReadOnly: true},
	{Name: "name", Label: "Name", Type: view.Text},
	{Name: "pwd", Label: "Current password", Type: view.Password},
	{Name: "pwd1", Label: "New password", Type: view.Password},
	{Name: "pwd2", Label: "Repeat new password", Type: view.Password},
}

// Site serves the pages that are not resource lists: site configuration,
// the operator's own profile and server status.
type Site struct {
	api    SiteAPI
	deps   resource.Deps
	status view.RenderFunc
	log    logrus.FieldLogger
}

// NewSite creates the site pages of a session.
func NewSite(opts Options) (*Site, error) {
	status, err := opts.Renderer.Template(PageStatus)
	if err != nil {
		return nil, err
	}
	deps := opts.Deps
	deps.Defaults()
	s := &Site{api: opts.Site, deps: deps, status: status, log: deps.Log.WithField("page", "site")}

	deps.Screen.Page(PageConfig).Form.Fields = siteConfigFields
	deps.Screen.Page(PageProfile).Form.Fields = profileFields
	return s, nil
}

// Config is the route handler of the site configuration page.
func (s *Site) Config(c *router.Context, next func()) {
	ctx := c.Context()
	ent, err := s.api.Config(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.deps.Fail(ctx, err)
		return
	}
	p := s.deps.Screen.Page(PageConfig)
	p.Form.Clear()
	p.Form.Set(ent)
	p.Subs.Dispose()
	p.Subs.Bind(ActConfigSave, s.saveConfig)
	p.Visible = true
}

func (s *Site) saveConfig(ctx context.Context, ev view.Event) {
	p := s.deps.Screen.Page(PageConfig)
	if ev.Values != nil {
		p.Form.Load(ev.Values)
	}
	data, msg := bind(p.Form, &siteConfigForm{}, map[string]string{"loadfs": "0"}, siteConfigMessages)
	if msg != "" {
		s.deps.Screen.Notify(view.NoticeError, msg)
		return
	}
	res, err := s.api.SaveConfig(ctx, data)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.deps.Fail(ctx, err)
		return
	}
	if !res.OK {
		s.deps.Screen.Notify(view.NoticeError, res.Msg)
		return
	}
	s.log.Info("site configuration saved")
	s.deps.Screen.Notify(view.NoticeInfo, "Saved")
}

// Profile is the route handler of the operator's profile page.
func (s *Site) Profile(c *router.Context, next func()) {
	ctx := c.Context()
	ent, err := s.api.CheckUser(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.deps.Fail(ctx, err)
		return
	}
	p := s.deps.Screen.Page(PageProfile)
	p.Form.Clear()
	p.Form.SetValue("acc", ent.String("acc"))
	p.Form.SetValue("name", ent.String("name"))
	p.Subs.Dispose()
	p.Subs.Bind(ActProfileSave, s.saveProfile)
	p.Visible = true
}

// saveProfile posts the name and current password, plus the new password as
// "pwd2" when one is entered. Password inputs are cleared once read.
func (s *Site) saveProfile(ctx context.Context, ev view.Event) {
	p := s.deps.Screen.Page(PageProfile)
	if ev.Values != nil {
		p.Form.Load(ev.Values)
	}
	var dto profileForm
	_, msg := bind(p.Form, &dto, nil, profileMessages)
	for _, f := range []string{"pwd", "pwd1", "pwd2"} {
		p.Form.SetValue(f, "")
	}
	if msg != "" {
		s.deps.Screen.Notify(view.NoticeError, msg)
		return
	}
	data := url.Values{"name": {dto.Name}, "pwd": {dto.Pwd}}
	if dto.Pwd1 != "" {
		data.Set("pwd2", dto.Pwd1)
	}
	res, err := s.api.SaveProfile(ctx, data)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.deps.Fail(ctx, err)
		return
	}
	if !res.OK {
		s.deps.Screen.Notify(view.NoticeError, res.Msg)
		return
	}
	s.log.Info("profile saved")
	if s.deps.AfterMutation(ctx) {
		s.deps.Nav.Navigate(ctx, "/")
	}
}

// StatusItem is one line of the status page.
type StatusItem struct {
	Key   string
	Value string
}

// Status is the route handler of the read-only server status page.
func (s *Site) Status(c *router.Context, next func()) {
	ctx := c.Context()
	ent, err := s.api.Stats(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.deps.Fail(ctx, err)
		return
	}
	items := make([]StatusItem, 0, len(ent))
	for k := range ent {
		items = append(items, StatusItem{Key: k, Value: ent.String(k)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	p := s.deps.Screen.Page(PageStatus)
	markup, err := s.status(map[string]interface{}{"items": items, "base": s.deps.Base})
	if err != nil {
		s.deps.Screen.Notify(view.NoticeError, err.Error())
		return
	}
	p.Table.Markup = markup
	p.Visible = true
}
