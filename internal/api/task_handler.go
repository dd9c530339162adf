package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/shaiso/conveyor/internal/telemetry"
)

// ListTasks возвращает список задач.
// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	active := h.dispatcher.Active()

	names := h.tasks.Names()
	result := make([]TaskResponse, 0, len(names))
	for _, name := range names {
		def, err := h.tasks.Get(name)
		if err != nil {
			// Задачу перезаписали между Names и Get
			continue
		}
		result = append(result, TaskFromDef(def, nil, slices.Contains(active, name)))
	}

	List(w, result, len(result))
}

// GetTask возвращает задачу с развёрнутой последовательностью шагов.
// GET /api/v1/tasks/{name}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	logger := telemetry.FromContext(r.Context())

	def, err := h.tasks.Get(name)
	if HandleError(w, logger, err, "") {
		return
	}
	plan, err := h.tasks.Resolve(name)
	if HandleError(w, logger, err, "") {
		return
	}

	Success(w, TaskFromDef(def, plan, slices.Contains(h.dispatcher.Active(), name)))
}

// CreateRun запускает задачу в фоне.
// POST /api/v1/tasks/{name}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	logger := telemetry.FromContext(r.Context())

	// Тело необязательно
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	run, err := h.dispatcher.Dispatch(name, req.Options, "api")
	if HandleError(w, logger, err, "") {
		return
	}

	logger.Info("run dispatched", "task", name, "run_id", run.ID)
	JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(*run)})
}
