package runner

import (
	"errors"
	"fmt"
)

// ErrRunCancelled — run прерван отменой context.
var ErrRunCancelled = errors.New("run cancelled")

// StepExecutionError — шаг задачи завершился неудачей.
//
// Unwrap возвращает ошибку handler'а без изменений.
type StepExecutionError struct {
	// Task — задача, которую запускали.
	Task string

	// Step — имя упавшего шага.
	Step string

	// Index — позиция шага в развёрнутой последовательности (с 0).
	Index int

	// Err — ошибка handler'а.
	Err error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("task %s: step %s failed: %v", e.Task, e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// IsStepExecutionError проверяет, является ли ошибка StepExecutionError.
func IsStepExecutionError(err error) (*StepExecutionError, bool) {
	var stepErr *StepExecutionError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}
