package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers wires the three HTTP routes from spec.md §6 to the narrow
// interfaces this package defines. Jobs, Cancel, and Artifacts are
// typically all satisfied by a single *Service, but are kept as separate
// interfaces so handlers can be tested against minimal fakes.
type Handlers struct {
	Jobs      JobService
	Cancel    Canceller
	Artifacts ArtifactServer
}

// Router builds the chi router exposing spec.md §6's three endpoints,
// grounded on the teacher pack's go-chi/chi/v5 usage.
func (s *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Post("/download", s.handleDownload)
	r.Get("/stream_progress/{request_id}", s.handleStreamProgress)
	r.Get("/download_file/{request_id}", s.handleDownloadFile)

	return r
}

// New returns Handlers wired to svc for all three roles.
func New(svc *Service) *Handlers {
	return &Handlers{Jobs: svc, Cancel: svc, Artifacts: svc}
}
