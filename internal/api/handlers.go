// Package api exposes run submission and run lookup over HTTP. Runs are
// queued, not executed inline: POST answers 202 with the job ID and a
// worker drains the queue in the background.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maltedev/amazon-rank-tracker/internal/database"
	"github.com/maltedev/amazon-rank-tracker/internal/queue"
	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

type Handlers struct {
	queue  queue.Queue
	db     *database.DB
	logger *slog.Logger
}

func NewHandlers(q queue.Queue, db *database.DB, logger *slog.Logger) *Handlers {
	return &Handlers{
		queue:  q,
		db:     db,
		logger: logger.With("component", "api"),
	}
}

// TargetRequest is one keyword with the ASINs to look for.
type TargetRequest struct {
	Keyword string   `json:"keyword"`
	ASINs   []string `json:"asins"`
}

// CreateRunRequest represents a new tracking run submission.
type CreateRunRequest struct {
	Targets []TargetRequest `json:"targets"`
}

// CreateRunResponse acknowledges a queued run.
type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Queued int    `json:"queued"`
}

// CreateRun validates the submitted targets and enqueues a scan job.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var targets []rank.Target
	for _, t := range req.Targets {
		if t.Keyword == "" || len(t.ASINs) == 0 {
			continue
		}
		targets = append(targets, rank.NewTarget(t.Keyword, t.ASINs...))
	}
	if len(targets) == 0 {
		h.respondError(w, http.StatusBadRequest, "at least one target with a keyword and an asin is required")
		return
	}

	job := queue.NewScanJob(targets)
	if err := h.queue.Push(job); err != nil {
		h.logger.Error("failed to enqueue run", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to enqueue run")
		return
	}

	h.logger.Info("run queued", "run_id", job.ID.String(), "keywords", len(targets))
	h.respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:  job.ID.String(),
		Status: "queued",
		Queued: h.queue.Size(),
	})
}

// RunResponse is one run's status row.
type RunResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	Keywords    int    `json:"keywords"`
	Records     int    `json:"records"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// GetRun returns the state of a queued or finished run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.db.GetRun(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := RunResponse{
		RunID:       run.ID.String(),
		Status:      string(run.Status),
		Keywords:    run.Keywords,
		Records:     run.Records,
		StartedAt:   run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		OutputPath:  run.OutputPath,
		ErrorDetail: run.ErrorDetail,
	}
	if run.FinishedAt.Valid {
		resp.FinishedAt = run.FinishedAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetRunRecords returns a finished run's rank records.
func (h *Handlers) GetRunRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	if _, err := h.db.GetRun(r.Context(), id); err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	records, err := h.db.ListRecords(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list records", "run_id", id.String(), "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	if records == nil {
		records = []rank.RankRecord{}
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "runID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
