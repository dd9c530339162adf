package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
)

// Task DTOs

// TaskResponse — ответ с задачей.
type TaskResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
	Plan        []string `json:"plan,omitempty"`
	Running     bool     `json:"running"`
}

// TaskFromDef конвертирует engine.TaskDef в TaskResponse.
// Ссылки на задачи отдаются с префиксом "@".
func TaskFromDef(def engine.TaskDef, plan []string, running bool) TaskResponse {
	refs := make([]string, len(def.Steps))
	for i, ref := range def.Steps {
		refs[i] = ref.String()
	}
	return TaskResponse{
		Name:        def.Name,
		Description: def.Description,
		Steps:       refs,
		Plan:        plan,
		Running:     running,
	}
}

// Run DTOs

// CreateRunRequest — запрос на запуск задачи.
type CreateRunRequest struct {
	Options map[string]string `json:"options,omitempty"`
}

// StepResponse — ответ с результатом шага.
type StepResponse struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Type       string         `json:"type,omitempty"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID         `json:"id"`
	Task       string            `json:"task"`
	Status     string            `json:"status"`
	Plan       []string          `json:"plan"`
	Steps      []StepResponse    `json:"steps,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Trigger    string            `json:"trigger,omitempty"`
	FailedStep string            `json:"failed_step,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	steps := make([]StepResponse, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = StepResponse{
			Index:      s.Index,
			Name:       s.Name,
			Type:       s.Type,
			Status:     string(s.Status),
			Outputs:    s.Outputs,
			Error:      s.Error,
			DurationMs: s.Duration().Milliseconds(),
		}
	}
	return RunResponse{
		ID:         r.ID,
		Task:       r.Task,
		Status:     string(r.Status),
		Plan:       r.Plan,
		Steps:      steps,
		Options:    r.Options,
		Trigger:    r.Trigger,
		FailedStep: r.FailedStep,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		CreatedAt:  r.CreatedAt,
	}
}

// Schedule DTOs

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	Name        string            `json:"name"`
	Task        string            `json:"task"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Options     map[string]string `json:"options,omitempty"`
	NextDueAt   *time.Time        `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time        `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID        `json:"last_run_id,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Name:        s.Name,
		Task:        s.Task,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		Options:     s.Options,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
	}
}
