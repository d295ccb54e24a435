// Package server is the HTTP front-end. It turns chat requests into
// conversation runs and always answers with {"response": text}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"taigent/internal/logging"
	"taigent/internal/types"
)

const (
	emptyMessageReply = "Please enter a message."
	busyReply         = "The assistant is busy with other requests. Please try again in a moment."
	badRequestReply   = "Could not read the request. Send JSON like {\"message\": \"...\"}."

	maxBodyBytes = 1 << 20
)

// Runner runs one conversation and returns the text for the user.
// *session.Executor implements it.
type Runner interface {
	Run(ctx context.Context, input string) string
}

// ToolLister lists the operations available to the model.
type ToolLister interface {
	Definitions() []types.ToolDefinition
}

// Options configures a Server.
type Options struct {
	// MaxConcurrentRuns caps parallel conversation runs. Requests beyond it
	// get a busy reply instead of waiting.
	MaxConcurrentRuns int

	// DefaultProjectID is named to the model when a request carries no
	// project_id. Zero means none.
	DefaultProjectID int
}

// Server is the HTTP front-end.
type Server struct {
	runner  Runner
	tools   ToolLister
	runs    *semaphore.Weighted
	opts    Options
	started time.Time
	mux     *http.ServeMux
}

// New creates a server.
func New(runner Runner, tools ToolLister, opts Options) *Server {
	if opts.MaxConcurrentRuns < 1 {
		opts.MaxConcurrentRuns = 1
	}
	s := &Server{
		runner:  runner,
		tools:   tools,
		runs:    semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		opts:    opts,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/tools", s.handleTools)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Server("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	ProjectID int    `json:"project_id,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logging.ServerDebug("Bad chat request: %v", err)
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: badRequestReply})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusOK, chatResponse{Response: emptyMessageReply})
		return
	}

	if !s.runs.TryAcquire(1) {
		logging.ServerWarn("Rejecting chat request: %d runs in flight", s.opts.MaxConcurrentRuns)
		writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: busyReply})
		return
	}
	defer s.runs.Release(1)

	projectID := req.ProjectID
	if projectID == 0 {
		projectID = s.opts.DefaultProjectID
	}

	start := time.Now()
	reply := s.runner.Run(r.Context(), WithProjectContext(message, projectID))
	logging.ServerDebug("Chat request answered in %v", time.Since(start))

	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

// WithProjectContext prefixes message with a line naming the default project.
// The conversation loop itself never assumes one.
func WithProjectContext(message string, projectID int) string {
	if projectID <= 0 {
		return message
	}
	return fmt.Sprintf("[Context: unless I say otherwise, I am working in project_id %d.]\n\n%s", projectID, message)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  len(s.tools.Definitions()),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := s.tools.Definitions()
	out := make([]toolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolInfo{Name: d.Name, Description: d.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerError("Failed to write response: %v", err)
	}
}
