// Package resource turns a resource descriptor into a working list, edit,
// delete and ordering controller bound to the map-site API.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/ordering"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// ErrDuplicate is returned when a resource name is registered twice.
var ErrDuplicate = errors.New("resource already registered")

// Payload is the outcome of converting a form: either data to post or a
// validation message. A non-empty Err means no request is sent.
type Payload struct {
	Data url.Values
	Err  string
}

// Invalid returns a Payload carrying a validation message.
func Invalid(msg string) Payload {
	return Payload{Err: msg}
}

// ToPayloadFunc converts the edit form into a Payload.
type ToPayloadFunc func(form *view.Form, isNew bool) Payload

// Descriptor declares one resource type. It is immutable once a Manager is
// built from it.
type Descriptor struct {
	// Name is the endpoint segment and page name, e.g. "layer".
	Name  string
	Title string
	// IDField names the identifier field of the resource's entities.
	IDField   string
	Template  view.RenderFunc
	ToPayload ToPayloadFunc
	Fields    []view.Field
	// Lookups maps an entity field holding comma-joined ids to a lookup
	// category.
	Lookups map[string]string

	Orderable    bool
	Hierarchical bool
	// LevelField holds the indentation level of hierarchical entities.
	LevelField string
	Deletable  bool
	// NoEdit disables the new and edit forms (read-only or upload-only lists).
	NoEdit bool
}

func (d *Descriptor) validate() error {
	switch {
	case d.Name == "":
		return errors.New("resource: descriptor has no name")
	case d.IDField == "":
		return fmt.Errorf("resource %s: no id field", d.Name)
	case d.Template == nil:
		return fmt.Errorf("resource %s: no template", d.Name)
	case d.ToPayload == nil && !d.NoEdit:
		return fmt.Errorf("resource %s: no payload function", d.Name)
	}
	if d.Hierarchical && d.LevelField == "" {
		d.LevelField = "indent"
	}
	return nil
}

// API gives access to resource endpoints.
type API interface {
	Endpoint(name string) *platform.Endpoint
}

// Lookup resolves references and is refreshed after mutations.
type Lookup interface {
	Refresh(ctx context.Context) error
	Resolve(category, ids string) string
}

// Navigator starts a navigation. Called from inside a navigation, the
// request is queued until the running chain returns.
type Navigator interface {
	Navigate(ctx context.Context, path string) string
}

// Deps are the collaborators shared by every manager of a console session.
type Deps struct {
	API      API
	Cache    Lookup
	Screen   *view.Screen
	Nav      Navigator
	Confirm  view.Confirmer
	Location *time.Location
	// Base is the URL prefix used for links in rendered lists.
	Base string
	Log  logrus.FieldLogger
}

// Defaults fills the optional collaborators.
func (d *Deps) Defaults() {
	if d.Confirm == nil {
		d.Confirm = view.EventConfirmer{}
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
}

// Fail surfaces an API failure: a lost session goes back to the login page,
// a permission refusal and anything else become notices. Failures of a
// navigation that was already replaced are dropped.
func (d *Deps) Fail(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		d.Log.WithError(err).Debug("stale response dropped")
		return
	}
	switch platform.Classify(err) {
	case platform.KindLogin:
		d.Log.WithError(err).Info("session lost, back to login")
		d.Screen.Auth = false
		d.Nav.Navigate(ctx, "/login")
	case platform.KindPermission:
		d.Screen.Notify(view.NoticePermission, "no permission")
	default:
		d.Log.WithError(err).Warn("api request failed")
		d.Screen.Notify(view.NoticeError, platform.Reason(err))
	}
}

// RefreshCache refreshes the lookup cache and reports whether it succeeded.
func (d *Deps) RefreshCache(ctx context.Context) bool {
	if err := d.Cache.Refresh(ctx); err != nil {
		d.Fail(ctx, err)
		return false
	}
	return true
}

// AfterMutation refreshes the lookup cache once the server accepted a change
// and reports whether the caller should go on to redraw. A failed refresh is
// surfaced but only stops the redraw when the session is gone or the
// navigation was replaced.
func (d *Deps) AfterMutation(ctx context.Context) bool {
	err := d.Cache.Refresh(ctx)
	if err == nil {
		return true
	}
	d.Fail(ctx, err)
	return ctx.Err() == nil && platform.Classify(err) != platform.KindLogin
}

// Registry holds at most one Manager per resource name.
type Registry struct {
	managers map[string]*Manager
	names    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*Manager)}
}

// Register adds a manager. A second manager with the same name is refused.
func (r *Registry) Register(m *Manager) error {
	name := m.desc.Name
	if _, ok := r.managers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.managers[name] = m
	r.names = append(r.names, name)
	return nil
}

// Get returns the manager of a resource.
func (r *Registry) Get(name string) (*Manager, bool) {
	m, ok := r.managers[name]
	return m, ok
}

// All returns managers in registration order.
func (r *Registry) All() []*Manager {
	out := make([]*Manager, len(r.names))
	for i, n := range r.names {
		out[i] = r.managers[n]
	}
	return out
}

// Entries converts rendered rows to ordering entries.
func Entries(rows []view.Row) []ordering.Entry {
	out := make([]ordering.Entry, len(rows))
	for i, r := range rows {
		out[i] = ordering.Entry{ID: r.ID, Level: r.Level}
	}
	return out
}
