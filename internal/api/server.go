package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vidrelay/internal/config"
	"vidrelay/internal/ledger"
	"vidrelay/internal/models"
	"vidrelay/internal/notify"
	"vidrelay/internal/storage"
	"vidrelay/internal/store"
	"vidrelay/internal/telemetry"
	"vidrelay/internal/worker"
)

// Dispatcher starts the jobs of a generation request.
type Dispatcher interface {
	Dispatch(req models.GenerationRequest, clientIP string) worker.Submission
}

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep() worker.SweepResult
}

// HistoryReader serves recorded transitions for a task. Optional.
type HistoryReader interface {
	History(ctx context.Context, taskID string) ([]store.TransitionRow, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Jobs       *store.JobStore
	Ledger     *ledger.Ledger
	Hub        *notify.Hub
	Dispatcher Dispatcher
	Janitor    Sweeper
	Images     *storage.Images
	History    HistoryReader
	Logger     zerolog.Logger
}

// Server wires HTTP handlers for the browser front end and the admin view.
type Server struct {
	cfg        config.Config
	jobs       *store.JobStore
	ledger     *ledger.Ledger
	hub        *notify.Hub
	dispatcher Dispatcher
	janitor    Sweeper
	images     *storage.Images
	history    HistoryReader
	log        zerolog.Logger
}

// New constructs the API server.
func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:        cfg,
		jobs:       deps.Jobs,
		ledger:     deps.Ledger,
		hub:        deps.Hub,
		dispatcher: deps.Dispatcher,
		janitor:    deps.Janitor,
		images:     deps.Images,
		history:    deps.History,
		log:        deps.Logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Get("/", s.handleIndex)
	r.Get("/admin", s.handleAdmin)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/generate", s.handleGenerate)
		r.Get("/task/{id}", s.handleGetTask)
		r.Get("/task/{id}/history", s.handleTaskHistory)
		r.Get("/admin/stats", s.handleAdminStats)
	})

	r.Get("/ws/{sessionID}", s.handleWS)
	return r
}

// accessLog logs one line per request. WebSocket upgrades hijack the writer,
// so the status is only what was written before the hijack.
func accessLog(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
