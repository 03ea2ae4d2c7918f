// Package api serves the HTTP job API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/agent"
	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/export"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Dispatcher runs a job in the background.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, req pipeline.Request) error
}

// Repository is the storage the API reads.
type Repository interface {
	export.Repository
	GetJob(ctx context.Context, id string) (*model.LeadGenJob, error)
	ListSourceEvents(ctx context.Context, jobID string) ([]model.LeadSourceEvent, error)
	Ping(ctx context.Context) error
}

// Deps wires the server.
type Deps struct {
	Repo           Repository
	Runner         *pipeline.Runner
	Dispatcher     Dispatcher
	AI             *ai.Service
	AllowedOrigins []string
}

// Server handles API requests.
type Server struct {
	Deps
	log *zap.Logger
}

// New creates a Server.
func New(d Deps) *Server {
	return &Server{Deps: d, log: zap.L().With(zap.String("component", "api"))}
}

// Routes returns the router with middleware mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.createJob)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/events", s.listEvents)
			r.Post("/serp", s.startStage(pipeline.StageSERP))
			r.Post("/enrich", s.startStage(pipeline.StageEnrich))
			r.Post("/agent", s.startStage(pipeline.StageAgent))
			r.Post("/run", s.runJob)
		})
		r.Get("/pools/{pool}/candidates", s.listCandidates)
		r.Post("/targeting/expand", s.expandTargeting)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	// Search is on unless the body turns it off.
	nj := pipeline.NewJob{Providers: model.JobProviders{SERP: true}}
	if !decode(w, r, &nj) {
		return
	}
	job, err := s.Runner.Submit(r.Context(), nj)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Repo.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Repo.GetJob(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	events, err := s.Repo.ListSourceEvents(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type stageBody struct {
	MaxEnrichments int    `json:"max_enrichments"`
	UserID         string `json:"user_id"`
	MaxCompanies   int    `json:"max_companies"`
	MaxIterations  int    `json:"max_iterations"`
	Prompt         string `json:"prompt"`
}

func (s *Server) startStage(st pipeline.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body stageBody
		if r.ContentLength != 0 && !decode(w, r, &body) {
			return
		}
		s.dispatch(w, r, pipeline.Request{
			Stages:         []pipeline.Stage{st},
			MaxEnrichments: body.MaxEnrichments,
			UserID:         body.UserID,
			Agent: agent.Options{
				MaxCompanies:  body.MaxCompanies,
				MaxIterations: body.MaxIterations,
				Prompt:        body.Prompt,
			},
		})
	}
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, req)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Repo.GetJob(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if job.Status == model.JobStatusRunning {
		s.fail(w, pipeline.ErrJobRunning)
		return
	}
	if err := s.Dispatcher.Dispatch(r.Context(), id, req); err != nil {
		s.fail(w, err)
		return
	}
	stages := req.Stages
	if len(stages) == 0 {
		stages = pipeline.DefaultStages
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "job_id": id, "stages": stages})
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := export.Filter{
		MinScore:        atoi(q.Get("min_score")),
		Limit:           atoi(q.Get("limit")),
		IncludeRejected: q.Get("include_rejected") == "true",
	}
	leads, err := export.Collect(r.Context(), s.Repo, chi.URLParam(r, "pool"), f)
	if err != nil {
		s.fail(w, err)
		return
	}

	type candidate struct {
		model.LeadCandidate
		Contacts []model.ContactCandidate `json:"contacts"`
	}
	out := make([]candidate, len(leads))
	for i, l := range leads {
		out[i] = candidate{LeadCandidate: l.Candidate, Contacts: l.Contacts}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

func (s *Server) expandTargeting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	writeJSON(w, http.StatusOK, s.AI.ExpandTargeting(r.Context(), body.Prompt))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, pipeline.ErrJobRunning):
		writeError(w, http.StatusConflict, "job already running")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
