package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server wraps the chi router with the middleware chain every route shares.
type Server struct{ mux *chi.Mux }

func New() *Server {
	m := chi.NewRouter()
	m.Use(
		chimw.RealIP,
		chimw.RequestID,
		chimw.Recoverer,
		Timeout(60*time.Second), // sync requests fan out to partners
		Instrument(log.Logger),
	)
	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches an extra handler, e.g. the metrics endpoint, to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
