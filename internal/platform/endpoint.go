package platform

import (
	"context"
	"net/url"
	"strings"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// Endpoint is the REST namespace of one resource type, /api/{name}/.
type Endpoint struct {
	client *Client
	name   string
}

// Endpoint returns the namespace for a resource type.
func (c *Client) Endpoint(name string) *Endpoint {
	return &Endpoint{client: c, name: strings.Trim(name, "/")}
}

// Base returns the collection path.
func (e *Endpoint) Base() string {
	return "/api/" + e.name + "/"
}

// List fetches the collection.
func (e *Endpoint) List(ctx context.Context) ([]byte, error) {
	return e.client.Get(ctx, e.Base(), nil)
}

// Get fetches one entity. Some resource types answer with the whole
// collection instead; callers scan it by the declared id field.
func (e *Endpoint) Get(ctx context.Context, id string) ([]byte, error) {
	return e.client.Get(ctx, e.Base()+url.PathEscape(id), nil)
}

// Save creates (empty id) or updates an entity.
func (e *Endpoint) Save(ctx context.Context, id string, form url.Values) (*Result, error) {
	path := e.Base()
	if id != "" {
		path += url.PathEscape(id)
	}
	return e.client.Mutate(ctx, path, form)
}

// Delete removes an entity.
func (e *Endpoint) Delete(ctx context.Context, id string) (*Result, error) {
	return e.client.Mutate(ctx, e.Base()+url.PathEscape(id)+"/del", nil)
}

// Order persists a serialized order ("3,1,2" or "3/0,1/1,2/1").
func (e *Endpoint) Order(ctx context.Context, order string) (*Result, error) {
	return e.client.Mutate(ctx, e.Base()+"order", url.Values{"order": {order}})
}

// Upload relays files to the collection endpoint as multipart form data.
func (e *Endpoint) Upload(ctx context.Context, files []UploadFile, progress ProgressFunc) (*Result, error) {
	body, err := e.client.Upload(ctx, e.Base(), AttachField, files, progress)
	if err != nil {
		return nil, err
	}
	res, perr := ParseResult(e.Base(), body)
	if perr != nil {
		// The attachment endpoint answers with the stored records, not an envelope.
		if _, derr := models.DecodeCollection(body); derr == nil {
			return &Result{OK: true}, nil
		}
		return nil, perr
	}
	return res, nil
}
