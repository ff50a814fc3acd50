package api

import (
	"errors"
	"net/http"

	"github.com/flosch/pongo2/v6"

	"github.com/rflorenc/mapsite-admin/internal/console"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// LayoutTemplate renders the whole screen.
const LayoutTemplate = "layout"

// formKeys are the submission fields consumed by the action dispatcher itself.
var formKeys = []string{"action", "id", "confirm"}

// session returns the caller's console session, starting one when the cookie
// is missing or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*console.Console, error) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		if c := s.Sessions.Get(ck.Value); c != nil {
			return c, nil
		}
	}
	c, err := s.Sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    c.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c, nil
}

// Screen navigates the session to the requested path and renders it. The
// active route only runs again with reload=1.
func (s *Server) Screen(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.Log.WithError(err).Error("creating console session")
		http.Error(w, "console unavailable", http.StatusInternalServerError)
		return
	}
	path, err := c.Visit(r.Context(), r.URL.Path, r.URL.Query().Get("reload") == "1")
	if errors.Is(err, console.ErrOutsideBase) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if target := s.BasePath + path; target != r.URL.Path && !(path == "/" && r.URL.Path == s.BasePath) {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	s.render(w, c)
}

// Logout ends the API session, drops the console session and clears the
// cookie. The next request starts a fresh session on the login page.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		if c := s.Sessions.Get(ck.Value); c != nil {
			if _, err := c.Visit(r.Context(), r.URL.Path, true); err != nil {
				s.Log.WithError(err).Warn("logout navigation failed")
			}
			s.Sessions.Delete(c.ID)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.BasePath+"/login", http.StatusSeeOther)
}

// Action dispatches a row or form action, then shows the resulting screen.
func (s *Server) Action(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.Log.WithError(err).Error("creating console session")
		http.Error(w, "console unavailable", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	ev := view.Event{
		Action:    r.PostForm.Get("action"),
		ID:        r.PostForm.Get("id"),
		Confirmed: r.PostForm.Get("confirm") == "1",
	}
	if ev.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	values := r.PostForm
	for _, k := range formKeys {
		values.Del(k)
	}
	if len(values) > 0 {
		ev.Values = values
	}

	if n := c.Dispatch(r.Context(), ev); n == 0 {
		s.Log.WithField("action", ev.Action).Info("stale action ignored")
	}
	http.Redirect(w, r, s.BasePath+c.Current(), http.StatusSeeOther)
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.Sessions.Len(),
	})
}

func (s *Server) render(w http.ResponseWriter, c *console.Console) {
	snap := c.Snapshot()
	for i := range snap.Pages {
		if snap.Pages[i].Upload {
			snap.Pages[i].Transfer = s.Transfers.Create().ID
		}
	}
	html, err := s.Renderer.Render(LayoutTemplate, pongo2.Context{
		"base":    snap.Base,
		"auth":    snap.Auth,
		"current": snap.Current,
		"title":   snap.Title,
		"nav":     snap.Nav,
		"notices": snap.Notices,
		"pages":   snap.Pages,
	})
	if err != nil {
		s.Log.WithError(err).Error("rendering screen")
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(html))
}
