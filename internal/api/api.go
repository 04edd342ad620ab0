// Package api exposes the manager over a small local HTTP API so a separate
// presentation shell can drive it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/proxyswitch/internal/manager"
	"github.com/user/proxyswitch/internal/state"
	"github.com/user/proxyswitch/internal/target"
)

// Server serves the control API.
type Server struct {
	mgr *manager.Manager
	// Fallback supplies the target for /api/test when the body is empty and
	// nothing is connected.
	Fallback func() (target.ProxyTarget, bool)
	log      *slog.Logger
}

func NewServer(mgr *manager.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{mgr: mgr, log: log.With("component", "api")}
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	State    state.ConnectionState `json:"state"`
	Adapters []string              `json:"adapters"`
	Snapshot *state.Snapshot       `json:"snapshot,omitempty"`
}

// Handler returns the chi router with every route mounted under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", s.RegisterRoutes)
	return r
}

// RegisterRoutes registers the proxy control routes.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/status", s.statusHandler)
	r.Group(func(r chi.Router) {
		r.Use(requireJSON)
		r.Post("/connect", s.connectHandler)
		r.Post("/disconnect", s.disconnectHandler)
		r.Post("/test", s.testHandler)
	})
}

// requireJSON rejects state-changing requests that are not declared as JSON.
// Browsers cannot send that content type cross-site without a preflight, so
// a page the user visits cannot drive the API with a plain form post.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "Content-Type must be application/json"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:    s.mgr.Status(),
		Adapters: s.mgr.Adapters(),
		Snapshot: s.mgr.Snapshot(),
	})
}

func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) {
	t, ok, err := decodeTarget(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if !ok {
		s.badRequest(w, errors.New("request body must contain a proxy target"))
		return
	}
	report, err := s.mgr.Connect(r.Context(), t)
	if err != nil {
		s.conflict(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.mgr.Disconnect(r.Context())
	if err != nil {
		s.conflict(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) testHandler(w http.ResponseWriter, r *http.Request) {
	t, ok, err := decodeTarget(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if !ok {
		t, ok = s.mgr.Status().ProxyTarget()
	}
	if !ok && s.Fallback != nil {
		t, ok = s.Fallback()
	}
	if !ok {
		s.badRequest(w, errors.New("no proxy target given and none configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.mgr.TestConnection(r.Context(), t))
}

// decodeTarget reads a target.Spec body. An empty body yields ok=false.
func decodeTarget(r *http.Request) (target.ProxyTarget, bool, error) {
	defer r.Body.Close()
	var spec target.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return target.ProxyTarget{}, false, nil
		}
		return target.ProxyTarget{}, false, errors.New("invalid request payload: " + err.Error())
	}
	t, err := spec.Target()
	if err != nil {
		return target.ProxyTarget{}, false, err
	}
	return t, true, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.log.Info("rejected request", "error", err)
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) conflict(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	if !errors.Is(err, manager.ErrBusy) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
