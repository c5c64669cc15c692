package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/archive"
	"github.com/DoyleJ11/map-pickban-backend/internal/hub"
)

type Deps struct {
	Hub     *hub.Hub
	Results archive.Store
	// Gateway serves /ws.
	Gateway http.Handler
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Results == nil {
		d.Results = archive.NewMemoryStore()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", CreateLobby(d.Hub, log))
		r.Get("/", ListLobbies(d.Hub))
		r.Get("/{code}", GetLobby(d.Hub))
		r.Get("/{code}/results", ListResults(d.Results))
	})
	r.Get("/formats", ListFormats)
	r.Get("/healthz", Healthz)
	if d.Gateway != nil {
		r.Get("/ws", d.Gateway.ServeHTTP)
	}
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
