package repo

import (
	"context"

	"github.com/shaiso/conveyor/internal/domain"
)

// RunStore — запись run'ов. RunRepo реализует этот интерфейс.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// Recorder — наблюдатель runner'а, сохраняющий историю run'ов.
//
// Run создаётся в RunStarted и обновляется после каждого шага,
// так что история видна и для незавершённых run'ов.
type Recorder struct {
	store RunStore
}

// NewRecorder создаёт Recorder.
func NewRecorder(store RunStore) *Recorder {
	return &Recorder{store: store}
}

// RunStarted сохраняет новый run.
func (r *Recorder) RunStarted(ctx context.Context, run *domain.Run) error {
	return r.store.Create(ctx, run)
}

// StepFinished сохраняет результат шага.
func (r *Recorder) StepFinished(ctx context.Context, run *domain.Run, _ domain.StepResult) error {
	return r.store.Update(ctx, run)
}

// RunFinished сохраняет итог run.
func (r *Recorder) RunFinished(ctx context.Context, run *domain.Run) error {
	return r.store.Update(ctx, run)
}
