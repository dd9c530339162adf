package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одно выполнение задачи (task).
//
// Run создаётся когда:
//   - Пользователь запускает задачу через CLI (conveyor run)
//   - Scheduler запускает задачу по cron-расписанию
//   - Задача запущена через HTTP API в режиме serve
//
// Run хранит развёрнутую последовательность шагов и результаты
// уже выполненных шагов. Шаги после упавшего в Steps не попадают.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Task — имя запущенной задачи.
	Task string `json:"task"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Plan — развёрнутая последовательность конкретных шагов.
	Plan []string `json:"plan"`

	// Steps — результаты выполненных шагов в порядке выполнения.
	Steps []StepResult `json:"steps,omitempty"`

	// Options — параметры запуска (--key=value из командной строки).
	Options map[string]string `json:"options,omitempty"`

	// Trigger — источник запуска: "cli", "schedule:<name>", "api".
	Trigger string `json:"trigger,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// FailedStep — имя шага, на котором run остановился.
	FailedStep string `json:"failed_step,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED или CANCELLED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(task string, plan []string, options map[string]string) *Run {
	return &Run{
		ID:        uuid.New(),
		Task:      task,
		Status:    RunStatusPending,
		Plan:      plan,
		Options:   options,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(step, err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.FailedStep = step
	r.Error = err
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled(step, err string) {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
	r.FailedStep = step
	r.Error = err
}

// AddStep добавляет результат выполненного шага.
func (r *Run) AddStep(res StepResult) {
	r.Steps = append(r.Steps, res)
}
