package domain

import "time"

// StepResult — результат выполнения одного шага внутри run.
type StepResult struct {
	// Index — позиция шага в развёрнутой последовательности (с 0).
	Index int `json:"index"`

	// Name — имя конкретного шага (например, "sass:dist").
	Name string `json:"name"`

	// Type — тип handler'а, выполнившего шаг ("exec", "clean", ...).
	Type string `json:"type,omitempty"`

	// Status — итог выполнения шага.
	Status StepStatus `json:"status"`

	// Outputs — выходные данные handler'а.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Error — текст ошибки handler'а.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения шага.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения шага.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность выполнения шага.
func (s *StepResult) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Succeeded возвращает true, если шаг выполнен успешно.
func (s *StepResult) Succeeded() bool {
	return s.Status == StepStatusSucceeded
}
