package api

import (
	"mime/multipart"
	"net/http"

	"github.com/rflorenc/mapsite-admin/internal/platform"
)

// maxUploadMemory bounds the part of a multipart upload kept in memory.
const maxUploadMemory = 32 << 20

// Upload relays the selected files to the attachment endpoint of the API,
// recording progress on the transfer named by the form.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.Log.WithError(err).Error("creating console session")
		http.Error(w, "console unavailable", http.StatusInternalServerError)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	if r.MultipartForm.File != nil {
		headers = r.MultipartForm.File["files"]
	}
	files := make([]platform.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading "+fh.Filename+": "+err.Error())
			return
		}
		defer f.Close()
		files = append(files, platform.UploadFile{Name: fh.Filename, Content: f})
	}

	t := s.Transfers.Get(r.FormValue("transfer"))
	t, err = c.Upload(r.Context(), t, files)
	log := s.Log.WithField("transfer", t.ID).WithField("files", len(files))
	if err != nil {
		log.WithError(err).Info("upload not completed")
	} else {
		log.Debug("upload relayed")
	}
	http.Redirect(w, r, s.BasePath+c.Current(), http.StatusSeeOther)
}
