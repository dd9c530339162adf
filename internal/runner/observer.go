package runner

import (
	"context"

	"github.com/shaiso/conveyor/internal/domain"
)

// Observer получает события выполнения run.
//
// Ошибка наблюдателя логируется и не влияет на исход run.
// Вызовы происходят синхронно из горутины run.
type Observer interface {
	RunStarted(ctx context.Context, run *domain.Run) error
	StepFinished(ctx context.Context, run *domain.Run, res domain.StepResult) error
	RunFinished(ctx context.Context, run *domain.Run) error
}

// notifyStarted уведомляет наблюдателей о начале run.
func (r *Runner) notifyStarted(ctx context.Context, rc *runContext) {
	for _, o := range r.observers {
		if err := o.RunStarted(ctx, rc.run); err != nil {
			rc.logger.Warn("observer failed", "event", "run_started", "error", err)
		}
	}
}

// notifyStep уведомляет наблюдателей о завершении шага.
func (r *Runner) notifyStep(ctx context.Context, rc *runContext, res domain.StepResult) {
	for _, o := range r.observers {
		if err := o.StepFinished(ctx, rc.run, res); err != nil {
			rc.logger.Warn("observer failed", "event", "step_finished", "step", res.Name, "error", err)
		}
	}
}

// notifyFinished уведомляет наблюдателей о завершении run.
// Использует context без отмены: запись итога не должна теряться
// из-за отменённого run.
func (r *Runner) notifyFinished(ctx context.Context, rc *runContext) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range r.observers {
		if err := o.RunFinished(ctx, rc.run); err != nil {
			rc.logger.Warn("observer failed", "event", "run_finished", "error", err)
		}
	}
}
