package observ

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusFunc supplies the body of a status route. ok is false until there is
// something to report.
type StatusFunc func() (body any, ok bool)

// Status wires the routes that report process state. Nil fields are allowed.
type Status struct {
	Positions StatusFunc
	EOD       StatusFunc
	// Health adds component details to /healthz.
	Health func() map[string]any
}

// Server exposes metrics, liveness, the latest positions and end-of-day
// marks over HTTP.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	started time.Time
	health  func() map[string]any
}

func NewServer(addr string, st Status) *Server {
	s := &Server{router: chi.NewRouter(), started: time.Now(), health: st.Health}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)

	s.router.Handle("/metrics", Handler())
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/positions", statusHandler(st.Positions))
	s.router.Get("/eod", statusHandler(st.EOD))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background. Listener errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	Log("http_listen", map[string]any{"addr": s.server.Addr})
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Error("http_server_failed", err, map[string]any{"addr": s.server.Addr})
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{}
	if s.health != nil {
		for k, v := range s.health() {
			body[k] = v
		}
	}
	body["status"] = "ok"
	body["uptime"] = time.Since(s.started).Round(time.Second).String()
	writeJSON(w, http.StatusOK, body)
}

func statusHandler(fn StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if fn == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, ok := fn()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Error("http_encode_failed", err, nil)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		Debug("http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}
