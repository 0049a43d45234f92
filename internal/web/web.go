package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/extractor"
	"github.com/local/cardforge/internal/metrics"
	"github.com/local/cardforge/internal/pipeline"
	"github.com/local/cardforge/internal/preflight"
	"github.com/local/cardforge/internal/store"
)

// MirrorReader looks up job status mirrored outside the process.
type MirrorReader interface {
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Server is the HTTP API for flashcard generation.
type Server struct {
	router  chi.Router
	runner  *pipeline.Runner
	checker *preflight.Checker
	mirror  MirrorReader // optional
	cfg     config.Config
}

func NewServer(runner *pipeline.Runner, checker *preflight.Checker, mirror MirrorReader, cfg config.Config) *Server {
	s := &Server{
		runner:  runner,
		checker: checker,
		mirror:  mirror,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/jobs/{jobID}", s.handleJobStatus)
	r.Get("/api/jobs/{jobID}/download", s.handleDownload)

	s.router = r
}

// generateRequest is the JSON body for url/text inputs.
type generateRequest struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	DeckName    string `json:"deck_name"`
	Coverage    string `json:"coverage"`
	TargetCards int    `json:"target_cards"`
	Prompt      string `json:"prompt"`
	Sync        bool   `json:"sync"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var (
		src    pipeline.Source
		params pipeline.Params
		sync   bool
		err    error
	)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		src, params, sync, err = s.parseUpload(w, r)
	} else {
		src, params, sync, err = s.parseJSON(r)
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if params.Level != "" {
		switch params.Level {
		case config.LevelMinimal, config.LevelMedium, config.LevelMaximum:
		default:
			jsonError(w, fmt.Sprintf("unknown coverage level %q", params.Level), http.StatusBadRequest)
			return
		}
	}

	job := pipeline.NewJob(uuid.NewString())
	s.runner.Jobs().Put(job)

	if sync {
		if err := s.runner.Generate(r.Context(), job, src, params); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, extractor.ErrUnsupportedFormat) {
				code = http.StatusUnprocessableEntity
			}
			var fe *extractor.FetchError
			if errors.As(err, &fe) {
				code = http.StatusBadGateway
			}
			jsonError(w, err.Error(), code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id": job.ID,
			"status": job.Snapshot().Status,
			"deck":   job.DeckCopy(),
		})
		return
	}

	go func() {
		// The request context dies with the response; the run gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.runner.Generate(ctx, job, src, params); err != nil {
			log.Error().Str("job_id", job.ID).Err(err).Msg("async generation failed")
		}
		if src.Path != "" && strings.HasPrefix(src.Path, s.cfg.Web.UploadDir) {
			_ = os.Remove(src.Path)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   job.Snapshot().Status,
		"poll_url": "/api/jobs/" + job.ID,
	})
}

func (s *Server) parseJSON(r *http.Request) (pipeline.Source, pipeline.Params, bool, error) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("invalid json body: %w", err)
	}
	if req.URL == "" && strings.TrimSpace(req.Text) == "" {
		return pipeline.Source{}, pipeline.Params{}, false, errors.New("one of url, text or file is required")
	}

	src := pipeline.Source{URL: req.URL, Text: req.Text, Title: req.DeckName}
	params := pipeline.Params{
		Level:       req.Coverage,
		TargetCards: req.TargetCards,
		Prompt:      req.Prompt,
		DeckName:    req.DeckName,
	}
	return src, params, req.Sync, nil
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (pipeline.Source, pipeline.Params, bool, error) {
	maxBytes := int64(s.cfg.Web.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if err := os.MkdirAll(s.cfg.Web.UploadDir, 0o755); err != nil {
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("prepare upload dir: %w", err)
	}

	dst := filepath.Join(s.cfg.Web.UploadDir, uuid.NewString()+"_"+filename)
	out, err := os.Create(dst)
	if err != nil {
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("save upload: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(file, maxBytes+1))
	out.Close()
	if err != nil {
		os.Remove(dst)
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("save upload: %w", err)
	}
	if n > maxBytes {
		os.Remove(dst)
		return pipeline.Source{}, pipeline.Params{}, false, fmt.Errorf("file exceeds max size (%d MB)", s.cfg.Web.MaxUploadMB)
	}

	src := pipeline.Source{
		Path:     dst,
		Declared: r.FormValue("format"),
		Title:    r.FormValue("deck_name"),
	}
	if src.Title == "" {
		src.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	params := pipeline.Params{
		Level:    r.FormValue("coverage"),
		Prompt:   r.FormValue("prompt"),
		DeckName: r.FormValue("deck_name"),
	}
	if v := r.FormValue("target_cards"); v != "" {
		if tc, err := strconv.Atoi(v); err == nil && tc > 0 {
			params.TargetCards = tc
		}
	}
	return src, params, r.FormValue("sync") == "true", nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if job := s.runner.Jobs().Get(jobID); job != nil {
		writeJSON(w, http.StatusOK, job.Snapshot())
		return
	}

	// The local registry forgets after the TTL; the mirror may still know.
	if s.mirror != nil {
		if st, ok, err := s.mirror.Get(r.Context(), jobID); err == nil && ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id":   jobID,
				"status":   st.Status,
				"progress": st.Progress,
				"message":  st.Message,
			})
			return
		}
	}
	jsonError(w, "job not found", http.StatusNotFound)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.runner.Jobs().Get(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusDone || snap.Artifact == "" {
		jsonError(w, "deck not ready", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(snap.Artifact)))
	http.ServeFile(w, r, snap.Artifact)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"subsystems": s.checker.Summary(r.Context()),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
