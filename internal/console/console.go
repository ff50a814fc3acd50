// Package console assembles one operator's console session: the screen
// model, the route table with its auth guards, the lookup cache and the API
// client behind them.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/lookup"
	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/resources"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// ErrOutsideBase is returned by Visit for paths outside the base path.
var ErrOutsideBase = errors.New("path outside the console")

// Options configure a console session.
type Options struct {
	Backend   *models.Backend
	BasePath  string
	Renderer  *view.Renderer
	Transfers *models.TransferStore
	Metrics   *platform.Metrics
	Location  *time.Location
	Log       logrus.FieldLogger
}

// Console is one operator's session. All navigation, actions and screen
// reads are serialized by its mutex.
type Console struct {
	ID string

	mu        sync.Mutex
	screen    *view.Screen
	router    *router.Router
	cache     *lookup.Cache
	client    *platform.Client
	resources *resources.Set
	deps      resource.Deps
	base      string
	returnTo  string
	log       logrus.FieldLogger
}

// New creates a console session with its route table.
func New(opts Options) (*Console, error) {
	if opts.Backend == nil {
		return nil, errors.New("console: no backend")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	id := uuid.New().String()
	log := opts.Log.WithField("session", id[:8])

	clientOpts := []platform.Option{platform.WithLogger(log)}
	if opts.Metrics != nil {
		clientOpts = append(clientOpts, platform.WithMetrics(opts.Metrics))
	}
	c := &Console{
		ID:     id,
		screen: view.NewScreen(),
		router: router.New(opts.BasePath, log),
		client: platform.NewClient(opts.Backend, clientOpts...),
		base:   strings.TrimRight(opts.BasePath, "/"),
		log:    log,
	}
	c.cache = lookup.New(c.client, log)
	c.deps = resource.Deps{
		API:      c.client,
		Cache:    c.cache,
		Screen:   c.screen,
		Nav:      c.router,
		Location: opts.Location,
		Base:     c.base,
		Log:      log,
	}
	c.deps.Defaults()

	set, err := resources.Build(resources.Options{
		Deps:      c.deps,
		Site:      c.client,
		Renderer:  opts.Renderer,
		Transfers: opts.Transfers,
	})
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	c.resources = set
	c.routes()
	return c, nil
}

// Base returns the URL prefix of the console.
func (c *Console) Base() string { return c.base }

// Resources returns the resource wiring of the session.
func (c *Console) Resources() *resources.Set { return c.resources }

// Start refreshes the lookup cache once, as the page load does. A missing
// API session only clears the auth flag; the guards send the operator to
// the login page.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.cache.Refresh(ctx)
	switch {
	case err == nil:
		c.screen.Auth = true
	case errors.Is(err, lookup.ErrNoSession) || platform.Classify(err) == platform.KindLogin:
		c.screen.Auth = false
	default:
		c.deps.Fail(ctx, err)
	}
	return err
}

// Current returns the active console path.
func (c *Console) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.Current()
}

// Navigate runs the route pipeline for a console path.
func (c *Console) Navigate(ctx context.Context, path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.Navigate(ctx, path)
}

// Visit navigates to a browser URL path under the base path. The active
// route is not re-entered unless reload is set.
func (c *Console) Visit(ctx context.Context, urlPath string, reload bool) (string, error) {
	path, ok := c.router.Strip(urlPath)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, urlPath)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if path == c.router.Current() && !reload {
		return path, nil
	}
	return c.router.Navigate(ctx, path), nil
}

// Dispatch delivers a row or form action. It returns the number of handlers
// that ran.
func (c *Console) Dispatch(ctx context.Context, ev view.Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.screen.Bindings.Dispatch(ctx, ev)
	if n == 0 {
		c.log.WithField("action", ev.Action).Debug("no handler bound")
	}
	return n
}

// Upload relays attachment files, recording progress on t.
func (c *Console) Upload(ctx context.Context, t *models.Transfer, files []platform.UploadFile) (*models.Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resources.Uploader.Upload(ctx, t, files)
}

// View runs fn with exclusive access to the screen model.
func (c *Console) View(fn func(s *view.Screen, current string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.screen, c.router.Current())
}

// Resolve looks up display names in the session's cache.
func (c *Console) Resolve(category, ids string) string {
	return c.cache.Resolve(category, ids)
}
