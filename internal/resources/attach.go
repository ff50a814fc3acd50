package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/resource"
	"github.com/rflorenc/mapsite-admin/internal/router"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// ErrNoFiles is returned by Upload when nothing was selected.
var ErrNoFiles = errors.New("no files selected")

func attachments(opts Options) (*resource.Manager, error) {
	return newManager(opts, resource.Descriptor{
		Name:      "attach",
		Title:     "Attachments",
		IDField:   "aid",
		Lookups:   map[string]string{"uid": "user"},
		Deletable: true,
		NoEdit:    true,
	})
}

// Uploader relays attachment uploads for the attachment list and tracks their
// byte progress as transfers.
type Uploader struct {
	m         *resource.Manager
	transfers *models.TransferStore
}

// NewUploader creates an Uploader for the attachment manager.
func NewUploader(m *resource.Manager, transfers *models.TransferStore) *Uploader {
	return &Uploader{m: m, transfers: transfers}
}

// Transfers returns the store progress is recorded in.
func (u *Uploader) Transfers() *models.TransferStore { return u.transfers }

// Page returns the upload page.
func (u *Uploader) Page() *view.Page { return u.m.EditPage() }

// Show is the route handler of the upload page.
func (u *Uploader) Show(c *router.Context, next func()) {
	deps := u.m.Deps()
	deps.Screen.HideAll()
	p := u.Page()
	p.Mode = view.ModeNew
	p.Subs.Dispose()
	p.Visible = true
}

// Upload sends files to the attachment endpoint, recording progress on t.
// A nil t gets a new transfer. On success the list is shown again.
func (u *Uploader) Upload(ctx context.Context, t *models.Transfer, files []platform.UploadFile) (*models.Transfer, error) {
	deps := u.m.Deps()
	if t == nil {
		t = u.transfers.Create()
	}
	if len(files) == 0 {
		t.Fail(ErrNoFiles.Error())
		deps.Screen.Notify(view.NoticeError, "Please choose files to upload")
		return t, ErrNoFiles
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	t.Start(names, 0)
	log := deps.Log.WithField("transfer", t.ID).WithField("files", len(files))

	res, err := deps.API.Endpoint(u.m.Name()).Upload(ctx, files, t.Progress)
	if err != nil {
		t.Fail(platform.Reason(err))
		deps.Fail(ctx, err)
		return t, err
	}
	if !res.OK {
		t.Fail(res.Msg)
		log.WithField("msg", res.Msg).Info("upload refused")
		deps.Screen.Notify(view.NoticeError, res.Msg)
		return t, fmt.Errorf("upload refused: %s", res.Msg)
	}
	t.Complete()
	log.Info("uploaded")
	deps.Screen.Notify(view.NoticeInfo, "Upload complete")
	if deps.AfterMutation(ctx) {
		deps.Nav.Navigate(ctx, "/"+u.m.Name())
	}
	return t, nil
}
