// Package resources declares the map-site resource types administered by the
// console and the standalone site pages.
package resources

import (
	"fmt"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Options are the collaborators of one console session.
type Options struct {
	Deps      resource.Deps
	Site      SiteAPI
	Renderer  *view.Renderer
	Transfers *models.TransferStore
}

// Set is everything Build wires for a session.
type Set struct {
	Registry *resource.Registry
	Site     *Site
	Uploader *Uploader
}

type builder func(opts Options) (*resource.Manager, error)

// Build creates and registers the manager of every resource type, in
// navigation order.
func Build(opts Options) (*Set, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("resources: no renderer")
	}
	if opts.Transfers == nil {
		opts.Transfers = models.NewTransferStore()
	}
	opts.Deps.Defaults()

	set := &Set{Registry: resource.NewRegistry()}
	for _, build := range []builder{layers, maps, links, tabs, attachments, users, hooks} {
		m, err := build(opts)
		if err != nil {
			return nil, err
		}
		if err := set.Registry.Register(m); err != nil {
			return nil, err
		}
	}

	attach, _ := set.Registry.Get("attach")
	set.Uploader = NewUploader(attach, opts.Transfers)

	site, err := NewSite(opts)
	if err != nil {
		return nil, err
	}
	set.Site = site
	return set, nil
}

// newManager loads the list template of desc and builds its manager.
func newManager(opts Options, desc resource.Descriptor) (*resource.Manager, error) {
	if desc.Template == nil {
		tmpl, err := opts.Renderer.Template(desc.Name)
		if err != nil {
			return nil, err
		}
		desc.Template = tmpl
	}
	return resource.New(desc, opts.Deps)
}
