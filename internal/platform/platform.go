package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// API paths of the session and profile endpoints.
const (
	PathInfo    = "/api/info"
	PathAuth    = "/api/auth"
	PathUser    = "/api/user"
	PathLogin   = "/api/login"
	PathLogout  = "/api/logout"
	PathConfig  = "/api/config/"
	PathStats   = "/api/astats"
	PathAttach  = "/api/attach/"
	AttachField = "attach"
)

// Session is the answer of the session probe: reference collections keyed by
// category ("user": [...]). A session without a "user" entry is not logged in.
type Session struct {
	Collections map[string][]models.Entity
}

// Has reports whether the category is present and non-empty.
func (s *Session) Has(category string) bool {
	return s != nil && len(s.Collections[category]) > 0
}

// ParseSession decodes the session probe body. Non-array members are ignored.
func ParseSession(body []byte) (*Session, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	s := &Session{Collections: make(map[string][]models.Entity, len(raw))}
	for key, value := range raw {
		var list []models.Entity
		if err := json.Unmarshal(value, &list); err != nil {
			continue
		}
		s.Collections[key] = list
	}
	return s, nil
}

// Ping checks the API is reachable without a session.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, PathInfo, nil)
	return err
}

// Probe fetches the current session together with the reference collections.
func (c *Client) Probe(ctx context.Context) (*Session, error) {
	body, err := c.Get(ctx, PathAuth, nil)
	if err != nil {
		return nil, err
	}
	return ParseSession(body)
}

// CheckUser returns the logged-in operator's profile; it fails with a
// "Forbidden" HTTPError when there is no valid session.
func (c *Client) CheckUser(ctx context.Context) (models.Entity, error) {
	body, err := c.Get(ctx, PathUser, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeEntity(body)
}

// Login opens an API session. Wrong credentials come back as 403 Forbidden.
func (c *Client) Login(ctx context.Context, acc, pwd string) error {
	_, err := c.PostForm(ctx, PathLogin, url.Values{"acc": {acc}, "pwd": {pwd}})
	return err
}

// Logout closes the API session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.PostForm(ctx, PathLogout, nil)
	return err
}

// SaveProfile updates the logged-in operator's own profile.
func (c *Client) SaveProfile(ctx context.Context, form url.Values) (*Result, error) {
	return c.Mutate(ctx, PathUser, form)
}

// Config fetches the site configuration.
func (c *Client) Config(ctx context.Context) (models.Entity, error) {
	body, err := c.Get(ctx, PathConfig, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeEntity(body)
}

// SaveConfig stores the site configuration.
func (c *Client) SaveConfig(ctx context.Context, form url.Values) (*Result, error) {
	return c.Mutate(ctx, PathConfig, form)
}

// Stats fetches the server statistics shown on the status page.
func (c *Client) Stats(ctx context.Context) (models.Entity, error) {
	body, err := c.Get(ctx, PathStats, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeEntity(body)
}
