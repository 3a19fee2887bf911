// Package dashboard serves the energy dashboard: a static page whose widgets
// are refreshed through an explicit table of callbacks.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/energydash/internal/meter"
)

const (
	dependenciesPath = "/_dash-dependencies"
	updatePath       = "/_dash-update-component"
	sessionCookie    = "energydash_session"

	maxUpdateBody = 64 << 10
)

// ServerOptions wires a Server
type ServerOptions struct {
	Registry *Registry
	Layout   Layout
	Metrics  *Metrics // optional
	Log      *logrus.Logger
}

// Server handles the dashboard's HTTP surface
type Server struct {
	registry *Registry
	metrics  *Metrics
	log      *logrus.Logger
	page     []byte
	router   *mux.Router
}

type updateInput struct {
	ID       string `json:"id"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

type updateRequest struct {
	Output string        `json:"output"`
	Inputs []updateInput `json:"inputs"`
}

type updateResponse struct {
	Output  string `json:"output"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer renders the layout once and sets up the routes
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("callback registry is required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	page, err := opts.Layout.Render()
	if err != nil {
		return nil, err
	}

	s := &Server{
		registry: opts.Registry,
		metrics:  opts.Metrics,
		log:      opts.Log,
		page:     page,
		router:   mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc(dependenciesPath, s.handleDependencies).Methods("GET")
	s.router.HandleFunc(updatePath, s.handleUpdate).Methods("POST")
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("Shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.sessionID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.page)
}

func (s *Server) handleDependencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Dependencies())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBody)
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, updateResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}

	req := &Request{SessionID: s.sessionID(w, r), Values: make(map[string]string, len(body.Inputs))}
	for _, in := range body.Inputs {
		req.Values[Input{ID: in.ID, Property: in.Property}.Key()] = valueString(in.Value)
	}

	start := time.Now()
	content, err := s.render(r.Context(), body.Output, req)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.observe(body.Output, status, elapsed.Seconds())
	}

	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrBadInput) || errors.Is(err, ErrUnknownOutput) {
			code = http.StatusBadRequest
		}
		s.log.WithFields(logrus.Fields{"output": body.Output, "status": code}).WithError(err).Warn("Callback failed")
		writeJSON(w, code, updateResponse{Output: body.Output, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Output: body.Output, Content: content})
}

func (s *Server) render(ctx context.Context, output string, req *Request) (string, error) {
	out, err := s.registry.Dispatch(ctx, output, req)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := out.Render(&buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", output, err)
	}
	return buf.String(), nil
}

// sessionID returns the caller's session, issuing a cookie on first contact or
// when the presented one was not issued by us
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && meter.ValidSessionID(c.Value) {
		return c.Value
	}
	id := meter.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
