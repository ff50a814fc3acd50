package console

import (
	"context"
	"strings"

	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Pages owned by the console itself.
const (
	PageLogin    = "login"
	PageNotFound = "notfound"
)

// ActLogin submits the login form.
const ActLogin = "login"

// Home is where "/" and a successful login lead.
const Home = "/layer"

var loginFields = []view.Field{
	{Name: "acc", Label: "Account", Type: view.Text},
	{Name: "pwd", Label: "Password", Type: view.Password},
}

func (c *Console) routes() {
	r := c.router
	set := c.resources
	guard := c.RequireSession

	r.Exit(c.closeModal)
	r.Handle("/", router.Redirect(Home))
	r.Handle("/login", c.SkipIfAuthenticated, c.showPage, c.loginPage)
	r.Handle("/logout", c.logout, router.Redirect("/login"))
	r.Handle("/user", guard, c.showPage, set.Site.Profile)
	r.Handle("/config", guard, c.showPage, set.Site.Config)
	r.Handle("/status", guard, c.showPage, set.Site.Status)
	r.Handle("/attach/new", guard, set.Uploader.Show)
	for _, m := range set.Registry.All() {
		base := "/" + m.Name()
		r.Handle(base, guard, c.showPage, m.List)
		if m.Descriptor().NoEdit {
			continue
		}
		r.Handle(base+"/new", guard, m.Add)
		r.Handle(base+"/:id", guard, m.Edit)
	}
	r.Handle("*", c.notFound)

	c.screen.Page(PageLogin).Form.Fields = loginFields
}

// RequireSession continues only with a valid API session. Without one the
// requested path is kept for after the login and the navigation goes to the
// login page.
func (c *Console) RequireSession(rc *router.Context, next func()) {
	ctx := rc.Context()
	_, err := c.client.CheckUser(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.screen.Auth = false
		if platform.Classify(err) == platform.KindLogin {
			c.returnTo = rc.Path
			rc.Redirect("/login")
			return
		}
		c.deps.Fail(ctx, err)
		return
	}
	c.screen.Auth = true
	next()
}

// SkipIfAuthenticated sends an operator who is already logged in home.
func (c *Console) SkipIfAuthenticated(rc *router.Context, next func()) {
	ctx := rc.Context()
	if _, err := c.client.CheckUser(ctx); err == nil {
		c.screen.Auth = true
		rc.Redirect("/")
		return
	}
	if ctx.Err() != nil {
		return
	}
	next()
}

// showPage reveals the page named by the path.
func (c *Console) showPage(rc *router.Context, next func()) {
	c.screen.Show(strings.Trim(rc.Path, "/"))
	next()
}

// closeModal hides every page, clears rendered lists and drops the action
// bindings of the view being left.
func (c *Console) closeModal(rc *router.Context, next func()) {
	c.screen.HideAll()
	c.screen.ClearTables()
	c.screen.DisposeAll()
	next()
}

func (c *Console) notFound(rc *router.Context, next func()) {
	c.log.WithField("path", rc.Path).Info("not found")
	c.screen.HideAll()
	c.screen.Show(PageNotFound)
}

func (c *Console) loginPage(rc *router.Context, next func()) {
	c.screen.Auth = false
	p := c.screen.Page(PageLogin)
	p.Subs.Dispose()
	p.Subs.Bind(ActLogin, c.login)
}

func (c *Console) login(ctx context.Context, ev view.Event) {
	p := c.screen.Page(PageLogin)
	if ev.Values != nil {
		p.Form.Load(ev.Values)
	}
	acc, pwd := p.Form.Get("acc"), p.Form.Get("pwd")
	p.Form.SetValue("pwd", "")

	log := c.log.WithField("acc", acc)
	if err := c.client.Login(ctx, acc, pwd); err != nil {
		if platform.Classify(err) == platform.KindLogin {
			log.Info("login refused")
			c.screen.Notify(view.NoticeError, "Wrong account or password")
			return
		}
		log.WithError(err).Warn("login failed")
		c.screen.Notify(view.NoticeError, "Unknown error: "+platform.Reason(err))
		return
	}
	log.Info("logged in")
	p.Form.SetValue("acc", "")
	c.screen.Auth = true
	if !c.deps.RefreshCache(ctx) {
		return
	}
	to := c.returnTo
	c.returnTo = ""
	if to == "" || to == "/login" || to == "/logout" {
		to = "/"
	}
	c.router.Navigate(ctx, to)
}

func (c *Console) logout(rc *router.Context, next func()) {
	if err := c.client.Logout(rc.Context()); err != nil {
		c.log.WithError(err).Warn("logout failed")
	}
	c.screen.Auth = false
	c.cache.Clear()
	c.returnTo = ""
	next()
}
