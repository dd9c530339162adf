package runner

import (
	"log/slog"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/steps"
	"github.com/shaiso/conveyor/internal/telemetry"
)

// runContext — состояние одного запуска: последовательность шагов,
// курсор и окружение. Существует только на время Execute.
type runContext struct {
	run    *domain.Run
	env    *steps.Environment
	logger *slog.Logger

	// index — позиция текущего шага, -1 до первого next().
	index int
}

func newRunContext(run *domain.Run, env *steps.Environment, base *slog.Logger) *runContext {
	logger := telemetry.WithRunID(telemetry.WithTask(base, run.Task), run.ID.String())

	// Копия окружения: handler'ы получают логгер с run_id и task
	stepEnv := *env
	stepEnv.Logger = logger

	return &runContext{
		run:    run,
		env:    &stepEnv,
		logger: logger,
		index:  -1,
	}
}

// next передвигает курсор. Возвращает false, когда шаги закончились.
func (rc *runContext) next() bool {
	if rc.index+1 >= len(rc.run.Plan) {
		return false
	}
	rc.index++
	return true
}

// step возвращает имя текущего шага.
func (rc *runContext) step() string {
	return rc.run.Plan[rc.index]
}

// fail оборачивает ошибку текущего шага.
func (rc *runContext) fail(err error) *StepExecutionError {
	return &StepExecutionError{
		Task:  rc.run.Task,
		Step:  rc.step(),
		Index: rc.index,
		Err:   err,
	}
}
