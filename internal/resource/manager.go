package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/ordering"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Row actions bound by a list render, prefixed with the resource name
// ("layer.del").
const (
	ActDelete      = "del"
	ActOrder       = "order"
	ActOrderUp     = "order.up"
	ActOrderDown   = "order.down"
	ActOrderCancel = "order.cancel"
	ActOrderSave   = "order.save"
	ActSave        = "save"
)

// ErrNotFound is surfaced when an edit target is missing from the answer.
var ErrNotFound = errors.New("not found")

// Hook runs after a form or list render for resource-specific wiring.
type Hook func(ctx context.Context, page *view.Page)

// Manager is the controller of one resource type.
type Manager struct {
	desc Descriptor
	deps Deps
	log  logrus.FieldLogger

	// AddCb and EditCb run after the edit form is populated; ListCb after
	// every list render. OrderCb normalizes the sequence after row moves.
	AddCb   Hook
	EditCb  func(ctx context.Context, page *view.Page, ent models.Entity)
	ListCb  Hook
	OrderCb ordering.NormalizeFunc

	order *ordering.Session
}

// New builds a manager for desc.
func New(desc Descriptor, deps Deps) (*Manager, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	if deps.API == nil || deps.Cache == nil || deps.Screen == nil || deps.Nav == nil {
		return nil, fmt.Errorf("resource %s: incomplete dependencies", desc.Name)
	}
	deps.Defaults()
	m := &Manager{
		desc:  desc,
		deps:  deps,
		log:   deps.Log.WithField("resource", desc.Name),
		order: ordering.NewSession(desc.Hierarchical, nil),
	}
	if !desc.NoEdit {
		form := m.EditPage().Form
		form.Fields = desc.Fields
		form.Location = deps.Location
	}
	return m, nil
}

// Name returns the resource name.
func (m *Manager) Name() string { return m.desc.Name }

// Descriptor returns a copy of the descriptor.
func (m *Manager) Descriptor() Descriptor { return m.desc }

// Deps returns the manager's collaborators.
func (m *Manager) Deps() *Deps { return &m.deps }

// Action returns the full action name of a row or form action.
func (m *Manager) Action(act string) string { return m.desc.Name + "." + act }

// Page returns the list page.
func (m *Manager) Page() *view.Page { return m.deps.Screen.Page(m.desc.Name) }

// EditPage returns the edit page.
func (m *Manager) EditPage() *view.Page { return m.deps.Screen.Page(m.desc.Name + "/edit") }

// Ordering returns the ordering session of the list view.
func (m *Manager) Ordering() *ordering.Session { return m.order }

// List is the list route handler.
func (m *Manager) List(c *router.Context, next func()) {
	m.Reload(c.Context())
}

// Add is the new-entity route handler.
func (m *Manager) Add(c *router.Context, next func()) {
	if m.desc.NoEdit {
		return
	}
	ctx := c.Context()
	m.deps.Screen.HideAll()
	p := m.EditPage()
	p.Mode = view.ModeNew
	p.ID = ""
	p.Preview = ""
	p.Form.Clear()
	m.bindSave(p, "")
	if m.AddCb != nil {
		m.AddCb(ctx, p)
	}
	p.Visible = true
	m.log.Debug("add")
}

// Edit is the edit route handler for "/{name}/:id".
func (m *Manager) Edit(c *router.Context, next func()) {
	if m.desc.NoEdit {
		return
	}
	ctx := c.Context()
	id := c.Param("id")
	body, err := m.deps.API.Endpoint(m.desc.Name).Get(ctx, id)
	if m.stale(ctx) {
		return
	}
	if err != nil {
		m.deps.Fail(ctx, err)
		return
	}
	ent, err := m.find(body, id)
	if err != nil {
		m.log.WithError(err).WithField("id", id).Info("edit target unavailable")
		m.deps.Screen.Notify(view.NoticeError, err.Error())
		return
	}

	p := m.EditPage()
	p.Mode = view.ModeEdit
	p.ID = id
	p.Preview = ""
	p.Form.Clear()
	p.Form.Set(ent)
	m.bindSave(p, id)
	if m.EditCb != nil {
		m.EditCb(ctx, p, ent)
	}
	m.deps.Screen.HideAll()
	p.Visible = true
	m.log.WithField("id", id).Debug("edit")
}

// find decodes a single entity, or scans a collection answer by the
// declared id field.
func (m *Manager) find(body []byte, id string) (models.Entity, error) {
	if t := bytes.TrimSpace(body); len(t) > 0 && t[0] == '[' {
		list, err := models.DecodeCollection(t)
		if err != nil {
			return nil, err
		}
		ent, ok := models.FindByID(list, m.desc.IDField, id)
		if !ok {
			return nil, ErrNotFound
		}
		return ent, nil
	}
	ent, err := models.DecodeEntity(body)
	if err != nil {
		return nil, err
	}
	if len(ent) == 0 {
		return nil, ErrNotFound
	}
	return ent, nil
}

// Reload fetches the collection and renders the list view. Previous row
// bindings are disposed before the new ones are made.
func (m *Manager) Reload(ctx context.Context) {
	body, err := m.deps.API.Endpoint(m.desc.Name).List(ctx)
	if m.stale(ctx) {
		return
	}
	if err != nil {
		m.deps.Fail(ctx, err)
		return
	}
	items, err := models.DecodeCollection(body)
	if err != nil {
		m.log.WithError(err).Warn("bad list payload")
		m.deps.Screen.Notify(view.NoticeError, fmt.Sprintf("%s: unreadable list", m.desc.Name))
		return
	}

	p := m.Page()
	m.order.Cancel()
	p.RemoveClass("order")
	p.Subs.Dispose()
	if err := m.render(p, m.rows(items)); err != nil {
		m.deps.Screen.Notify(view.NoticeError, err.Error())
		return
	}
	m.bindRows(p)
	if m.ListCb != nil {
		m.ListCb(ctx, p)
	}
	m.log.WithField("rows", len(items)).Debug("list")
}

func (m *Manager) rows(items []models.Entity) []view.Row {
	rows := make([]view.Row, len(items))
	for i, e := range items {
		r := view.Row{ID: e.String(m.desc.IDField), Entity: e}
		if m.desc.Hierarchical {
			r.Level = e.Int(m.desc.LevelField)
		}
		if len(m.desc.Lookups) > 0 {
			r.Names = make(map[string]string, len(m.desc.Lookups))
			for field, category := range m.desc.Lookups {
				r.Names[field] = m.deps.Cache.Resolve(category, e.String(field))
			}
		}
		rows[i] = r
	}
	return rows
}

func (m *Manager) render(p *view.Page, rows []view.Row) error {
	markup, err := m.desc.Template(map[string]interface{}{
		"name":         m.desc.Name,
		"title":        m.desc.Title,
		"base":         m.deps.Base,
		"rows":         rows,
		"ordering":     m.order.State() == ordering.Ordering,
		"orderable":    m.desc.Orderable,
		"deletable":    m.desc.Deletable,
		"editable":     !m.desc.NoEdit,
		"hierarchical": m.desc.Hierarchical,
	})
	if err != nil {
		return fmt.Errorf("rendering %s list: %w", m.desc.Name, err)
	}
	p.Table.Rows = rows
	p.Table.Markup = markup
	return nil
}

// Rerender redraws the list from the ordering sequence.
func (m *Manager) Rerender() {
	p := m.Page()
	byID := make(map[string]view.Row, len(p.Table.Rows))
	for _, r := range p.Table.Rows {
		byID[r.ID] = r
	}
	entries := m.order.Entries()
	rows := make([]view.Row, 0, len(entries))
	for _, e := range entries {
		r := byID[e.ID]
		r.Level = e.Level
		rows = append(rows, r)
	}
	if err := m.render(p, rows); err != nil {
		m.deps.Screen.Notify(view.NoticeError, err.Error())
	}
}

func (m *Manager) bindRows(p *view.Page) {
	if m.desc.Deletable {
		p.Subs.Bind(m.Action(ActDelete), m.delete)
	}
	if !m.desc.Orderable {
		return
	}
	p.Subs.Bind(m.Action(ActOrder), m.beginOrder)
	p.Subs.Bind(m.Action(ActOrderUp), m.moveRow(func(s *ordering.Session) func(string) error { return s.Up }))
	p.Subs.Bind(m.Action(ActOrderDown), m.moveRow(func(s *ordering.Session) func(string) error { return s.Down }))
	p.Subs.Bind(m.Action(ActOrderCancel), m.cancelOrder)
	p.Subs.Bind(m.Action(ActOrderSave), m.commitOrder)
}

func (m *Manager) bindSave(p *view.Page, id string) {
	p.Subs.Dispose()
	p.Subs.Bind(m.Action(ActSave), func(ctx context.Context, ev view.Event) {
		m.save(ctx, id, ev)
	})
}

func (m *Manager) delete(ctx context.Context, ev view.Event) {
	if !m.deps.Confirm.Confirm(ev, "Delete this item?") {
		return
	}
	log := m.log.WithField("id", ev.ID)
	res, err := m.deps.API.Endpoint(m.desc.Name).Delete(ctx, ev.ID)
	if m.stale(ctx) {
		return
	}
	if err != nil {
		m.deps.Fail(ctx, err)
		return
	}
	if !res.OK {
		log.WithField("msg", res.Msg).Info("delete refused")
		m.deps.Screen.Notify(view.NoticeError, res.Msg)
		return
	}
	log.Info("deleted")
	if m.deps.AfterMutation(ctx) {
		m.Reload(ctx)
	}
}

func (m *Manager) save(ctx context.Context, id string, ev view.Event) {
	p := m.EditPage()
	if ev.Values != nil {
		p.Form.Load(ev.Values)
	}
	payload := m.desc.ToPayload(p.Form, id == "")
	if payload.Err != "" {
		m.deps.Screen.Notify(view.NoticeError, payload.Err)
		return
	}
	log := m.log.WithField("id", id)
	res, err := m.deps.API.Endpoint(m.desc.Name).Save(ctx, id, payload.Data)
	if m.stale(ctx) {
		return
	}
	if err != nil {
		m.deps.Fail(ctx, err)
		return
	}
	if !res.OK {
		log.WithField("msg", res.Msg).Info("save refused")
		m.deps.Screen.Notify(view.NoticeError, res.Msg)
		return
	}
	log.Info("saved")
	if m.deps.AfterMutation(ctx) {
		m.deps.Nav.Navigate(ctx, "/"+m.desc.Name)
	}
}

func (m *Manager) beginOrder(ctx context.Context, ev view.Event) {
	p := m.Page()
	m.order = ordering.NewSession(m.desc.Hierarchical, m.OrderCb)
	m.order.Begin(Entries(p.Table.Rows))
	p.AddClass("order")
	m.Rerender()
}

func (m *Manager) moveRow(op func(*ordering.Session) func(string) error) view.Handler {
	return func(ctx context.Context, ev view.Event) {
		if err := op(m.order)(ev.ID); err != nil {
			m.log.WithError(err).Debug("row move ignored")
			return
		}
		m.Rerender()
	}
}

func (m *Manager) cancelOrder(ctx context.Context, ev view.Event) {
	m.order.Cancel()
	m.Page().RemoveClass("order")
	m.Reload(ctx)
}

func (m *Manager) commitOrder(ctx context.Context, ev view.Event) {
	if m.order.State() != ordering.Ordering {
		return
	}
	order := m.order.Serialize()
	res, err := m.deps.API.Endpoint(m.desc.Name).Order(ctx, order)
	if m.stale(ctx) {
		return
	}
	if err != nil {
		m.deps.Fail(ctx, err)
		return
	}
	if !res.OK {
		m.log.WithField("msg", res.Msg).Info("order refused")
		m.deps.Screen.Notify(view.NoticeError, res.Msg)
		return
	}
	m.log.WithField("order", order).Info("order saved")
	m.order.Committed()
	m.Page().RemoveClass("order")
	if m.deps.AfterMutation(ctx) {
		m.Reload(ctx)
	}
}

func (m *Manager) stale(ctx context.Context) bool {
	if ctx.Err() != nil {
		m.log.Debug("navigation replaced, result dropped")
		return true
	}
	return false
}
