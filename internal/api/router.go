// Package api is the operator-facing HTTP front of the console: it maps
// browser requests onto console sessions and renders their screens.
package api

import (
	"io"
	"io/fs"
	stdlog "log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

// Server holds shared state for all handlers.
type Server struct {
	BasePath  string
	Sessions  *SessionStore
	Transfers *models.TransferStore
	Renderer  *view.Renderer
	Assets    fs.FS
	Gatherer  prometheus.Gatherer
	Log       logrus.FieldLogger
}

// NewRouter builds the chi router with the console, upload, progress and
// operational routes.
func NewRouter(s *Server) http.Handler {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	if s.Gatherer == nil {
		s.Gatherer = prometheus.DefaultGatherer
	}
	base := "/" + strings.Trim(s.BasePath, "/")
	if base == "/" {
		base = ""
	}
	s.BasePath = base

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	// WebSocket (outside the console base to keep the screen routes HTML-only)
	r.Get("/ws/transfers/{id}", s.StreamTransfer)

	screens := func(r chi.Router) {
		if s.Assets != nil {
			r.Handle("/assets/*", http.StripPrefix(base+"/assets/", http.FileServer(http.FS(s.Assets))))
		}
		r.Post("/do", s.Action)
		r.Post("/attach/upload", s.Upload)
		r.Get("/logout", s.Logout)
		r.Get("/*", s.Screen)
	}
	if base == "" {
		screens(r)
	} else {
		r.Route(base, screens)
	}

	return r
}

// requestLogger sends chi's request lines to the logrus logger at debug level.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	type levelWriter interface {
		WriterLevel(logrus.Level) *io.PipeWriter
	}
	lw, ok := log.(levelWriter)
	if !ok {
		return middleware.Logger
	}
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  stdlog.New(lw.WriterLevel(logrus.DebugLevel), "", 0),
		NoColor: true,
	})
}
