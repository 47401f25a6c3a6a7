// Package viewer serves an interactive process map over HTTP.
package viewer

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/logflow/procmap/pkg/export"
	"github.com/logflow/procmap/pkg/kpi"
	"github.com/logflow/procmap/pkg/pipeline"
)

//go:embed web
var webFS embed.FS

// Server serves the latest pipeline result. It is safe for concurrent use;
// Publish may be called while requests are in flight.
type Server struct {
	mu      sync.RWMutex
	result  *pipeline.Result
	lastErr error

	broker *Broker
	mux    *http.ServeMux
	static fs.FS
}

// New creates a viewer server with no result yet.
func New() *Server {
	static, _ := fs.Sub(webFS, "web")
	s := &Server{
		broker: NewBroker(),
		mux:    http.NewServeMux(),
		static: static,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/dfg", s.withResult(func(w http.ResponseWriter, r *http.Request, res *pipeline.Result) {
		jsonResponse(w, res.DFG)
	}))
	s.mux.HandleFunc("/api/kpi", s.withResult(func(w http.ResponseWriter, r *http.Request, res *pipeline.Result) {
		jsonResponse(w, res.KPI)
	}))
	s.mux.HandleFunc("/api/cases", s.withResult(func(w http.ResponseWriter, r *http.Request, res *pipeline.Result) {
		jsonResponse(w, kpi.Cases(res.Log))
	}))
	s.mux.HandleFunc("/api/dot", s.withResult(func(w http.ResponseWriter, r *http.Request, res *pipeline.Result) {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.Write([]byte(export.DOT(res.DFG)))
	}))
	s.mux.HandleFunc("/api/events", s.broker.Handler())
	s.mux.HandleFunc("/", s.handleStatic)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Publish replaces the served result and notifies connected viewers.
func (s *Server) Publish(res *pipeline.Result) {
	s.mu.Lock()
	s.result = res
	s.lastErr = nil
	s.mu.Unlock()

	s.broker.Publish(Event{Event: "update", Data: map[string]string{"run_id": res.RunID}})
}

// PublishError records a failed run. The previous result stays visible.
func (s *Server) PublishError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.broker.Publish(Event{Event: "error", Data: map[string]string{"error": err.Error()}})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.broker.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) current() (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.lastErr
}

func (s *Server) withResult(fn func(http.ResponseWriter, *http.Request, *pipeline.Result)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res, _ := s.current()
		if res == nil {
			jsonError(w, "no result available yet", http.StatusServiceUnavailable)
			return
		}
		fn(w, r, res)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res, err := s.current()
	resp := map[string]interface{}{"status": "ok"}
	if res != nil {
		resp["run_id"] = res.RunID
		resp["finished_at"] = res.FinishedAt
	}
	if err != nil {
		resp["last_error"] = err.Error()
	}
	jsonResponse(w, resp)
}

// handleStatic serves the embedded web UI.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}

	data, err := fs.ReadFile(s.static, name[1:])
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch path.Ext(name) {
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	}
	w.Write(data)
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
