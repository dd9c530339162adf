package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ CANCELLED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все шаги выполнены успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — один из шагов завершился с ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён через context.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// StepStatus — результат выполнения отдельного шага.
type StepStatus string

const (
	// StepStatusSucceeded — handler вернул успех.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — handler вернул ошибку.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusCancelled — шаг прерван отменой run.
	StepStatusCancelled StepStatus = "CANCELLED"
)

// String возвращает строковое представление StepStatus.
func (s StepStatus) String() string {
	return string(s)
}
