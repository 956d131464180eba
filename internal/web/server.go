// Package web exposes the extraction pipeline over a local HTTP API.
// Uploaded .eml files are parsed as one batch and the BatchResult is
// returned as JSON; presentation is left to the caller.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanqizheng/mailfacts/internal/parse"
	"github.com/hanqizheng/mailfacts/internal/registry"
)

const (
	maxUploadBytes    = 64 << 20 // whole multipart request
	shutdownGraceTime = 5 * time.Second
)

type Server struct {
	opts       parse.Options
	chatClient parse.ChatClient
	projects   *registry.ProjectDatabase
	stages     *registry.StageDatabase
	httpServer *http.Server
	port       int
}

func NewServer(port int, opts parse.Options, chatClient parse.ChatClient, projects *registry.ProjectDatabase, stages *registry.StageDatabase) *Server {
	return &Server{
		opts:       opts,
		chatClient: chatClient,
		projects:   projects,
		stages:     stages,
		port:       port,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Get("/projects", s.handleProjects)
		r.Get("/stages", s.handleStages)
	})
	return r
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on http://%s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGraceTime)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParse accepts a multipart upload of message files under the
// "files" field and runs them as one batch.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded (use the \"files\" field)")
		return
	}

	var msgs []parse.SourceMessage
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s: %v", fh.Filename, err))
			return
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s: %v", fh.Filename, err))
			return
		}
		msgs = append(msgs, parse.SourceMessage{
			Filename:   fh.Filename,
			RawContent: raw,
			SizeBytes:  fh.Size,
		})
	}

	pipeline := parse.NewPipeline(s.opts, s.chatClient)
	batch := pipeline.Run(r.Context(), msgs)
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.projects.Projects)
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stages.Stages)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
