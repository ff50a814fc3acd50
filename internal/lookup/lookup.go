// Package lookup keeps the id → display name index used to resolve
// references between resources at render time.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/platform"
)

// Placeholder is rendered for ids the cache does not know.
const Placeholder = "[no data]"

// ErrNoSession is returned by Refresh when the probe answers without a user.
var ErrNoSession = errors.New("no session")

// Category describes one reference collection of the session probe.
type Category struct {
	Name      string // cache category, e.g. "user"
	Key       string // member of the probe payload holding the collection
	IDField   string
	NameField string
}

// DefaultCategories are the reference collections published by the API.
var DefaultCategories = []Category{
	{Name: "user", Key: "user", IDField: "uid", NameField: "name"},
}

// Prober fetches the current session and reference collections.
type Prober interface {
	Probe(ctx context.Context) (*platform.Session, error)
}

type snapshot map[string]map[string]string

// Cache is safe for concurrent reads. Refresh replaces the whole snapshot;
// it is never partially updated.
type Cache struct {
	api        Prober
	categories []Category
	log        logrus.FieldLogger
	snap       atomic.Pointer[snapshot]
}

// New creates an empty cache. With no categories, DefaultCategories are used.
func New(api Prober, log logrus.FieldLogger, categories ...Category) *Cache {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Cache{api: api, categories: categories, log: log}
	c.snap.Store(&snapshot{})
	return c
}

// Refresh issues one session probe and swaps in a new snapshot. On failure
// the previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	sess, err := c.api.Probe(ctx)
	if err != nil {
		return fmt.Errorf("refreshing lookup cache: %w", err)
	}
	if !sess.Has("user") {
		return ErrNoSession
	}
	next := make(snapshot, len(c.categories))
	for _, cat := range c.categories {
		names := make(map[string]string)
		for _, e := range sess.Collections[cat.Key] {
			if id := e.String(cat.IDField); id != "" {
				names[id] = e.String(cat.NameField)
			}
		}
		next[cat.Name] = names
	}
	c.snap.Store(&next)
	c.log.WithField("entries", c.Len()).Debug("lookup cache refreshed")
	return nil
}

// Clear drops every entry, e.g. after logout.
func (c *Cache) Clear() {
	c.snap.Store(&snapshot{})
}

// Resolve maps a comma-joined id list to display names. Unknown ids become
// Placeholder; an empty list resolves to "".
func (c *Cache) Resolve(category, ids string) string {
	if strings.TrimSpace(ids) == "" {
		return ""
	}
	s := *c.snap.Load()
	names := s[category]
	parts := strings.Split(ids, ",")
	for i, id := range parts {
		if name, ok := names[strings.TrimSpace(id)]; ok {
			parts[i] = name
		} else {
			parts[i] = Placeholder
		}
	}
	return strings.Join(parts, ",")
}

// Len returns the number of cached ids across categories.
func (c *Cache) Len() int {
	n := 0
	for _, names := range *c.snap.Load() {
		n += len(names)
	}
	return n
}
