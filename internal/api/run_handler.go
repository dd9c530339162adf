package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/telemetry"
)

// ListRuns возвращает историю run'ов с фильтрацией.
// GET /api/v1/runs?task=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is disabled: DB_URL is not set")
		return
	}

	query := r.URL.Query()
	filter := repo.RunFilter{
		Task:   query.Get("task"),
		Status: domain.RunStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	logger := telemetry.FromContext(r.Context())

	runs, err := h.runs.List(r.Context(), filter)
	if HandleError(w, logger, err, "") {
		return
	}
	// total — все run'ы под фильтром, а не только страница
	total, err := h.runs.Count(r.Context(), filter)
	if HandleError(w, logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, total)
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is disabled: DB_URL is not set")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleError(w, telemetry.FromContext(r.Context()), err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}
