package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/steps"
	"github.com/shaiso/conveyor/internal/telemetry"
)

// Lookup находит handler шага по имени в момент выполнения.
// steps.Catalog реализует этот интерфейс.
type Lookup interface {
	Lookup(step string) (steps.Handler, map[string]any, error)
}

// Runner выполняет задачи: разворачивает их в последовательность
// шагов и вызывает handler'ы строго по очереди.
//
// Runner не хранит состояния между запусками, один экземпляр можно
// использовать из нескольких горутин.
type Runner struct {
	tasks     *engine.Registry
	handlers  Lookup
	observers []Observer
	logger    *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Tasks — реестр задач.
	Tasks *engine.Registry

	// Handlers — поиск handler'ов по имени шага.
	Handlers Lookup

	// Observers — наблюдатели (метрики, история, события). Опционально.
	Observers []Observer

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tasks := cfg.Tasks
	if tasks == nil {
		tasks = engine.NewRegistry(engine.PolicyOverwrite)
	}

	return &Runner{
		tasks:     tasks,
		handlers:  cfg.Handlers,
		observers: cfg.Observers,
		logger:    logger,
	}
}

// Tasks возвращает реестр задач.
func (r *Runner) Tasks() *engine.Registry {
	return r.tasks
}

// Prepare разворачивает задачу и создаёт run в статусе PENDING.
// Ошибки разрешения (неизвестная задача, цикл) возвращаются до
// вызова какого-либо handler'а.
func (r *Runner) Prepare(name string, env *steps.Environment) (*domain.Run, error) {
	plan, err := r.tasks.Resolve(name)
	if err != nil {
		return nil, err
	}

	var options map[string]string
	if env != nil {
		options = maps.Clone(env.Options)
	}
	return domain.NewRun(name, plan, options), nil
}

// Run разворачивает задачу и выполняет её шаги.
//
// При ошибке шага выполнение останавливается, оставшиеся шаги не
// запускаются, возвращается *StepExecutionError. Run возвращается
// и при ошибке, если задача была развёрнута.
func (r *Runner) Run(ctx context.Context, name string, env *steps.Environment) (*domain.Run, error) {
	run, err := r.Prepare(name, env)
	if err != nil {
		return nil, err
	}
	return run, r.Execute(ctx, run, env)
}

// Execute выполняет подготовленный run.
func (r *Runner) Execute(ctx context.Context, run *domain.Run, env *steps.Environment) error {
	if env == nil {
		env = steps.NewEnvironment(run.Options)
	}
	rc := newRunContext(run, env, r.logger)

	run.MarkRunning()
	rc.logger.Info("run started", "steps", len(run.Plan))
	r.notifyStarted(ctx, rc)

	err := r.executeSteps(ctx, rc)

	var stepErr *StepExecutionError
	switch {
	case err == nil:
		run.MarkSucceeded()
		rc.logger.Info("run succeeded", "duration", run.Duration())
	case errors.Is(err, ErrRunCancelled) && errors.As(err, &stepErr):
		run.MarkCancelled(stepErr.Step, stepErr.Err.Error())
		rc.logger.Warn("run cancelled", "step", stepErr.Step, "duration", run.Duration())
	case errors.As(err, &stepErr):
		run.MarkFailed(stepErr.Step, stepErr.Err.Error())
		rc.logger.Error("run failed", "step", stepErr.Step, "error", stepErr.Err, "duration", run.Duration())
	default:
		run.MarkFailed("", err.Error())
		rc.logger.Error("run failed", "error", err)
	}

	r.notifyFinished(ctx, rc)
	return err
}

// executeSteps вызывает handler'ы по порядку до первой ошибки.
//
// Отмена, пришедшая во время успешного шага, приписывается этому шагу:
// следующий шаг не запускается и результата не получает.
func (r *Runner) executeSteps(ctx context.Context, rc *runContext) error {
	for rc.next() {
		if err := ctx.Err(); err != nil && rc.index == 0 {
			return rc.fail(fmt.Errorf("%w: not started: %w", ErrRunCancelled, err))
		}

		res, err := r.executeStep(ctx, rc)
		rc.run.AddStep(res)
		r.notifyStep(ctx, rc, res)

		if err != nil {
			if ctx.Err() != nil {
				return rc.fail(fmt.Errorf("%w: %w", ErrRunCancelled, err))
			}
			return rc.fail(err)
		}

		if err := ctx.Err(); err != nil && rc.index+1 < len(rc.run.Plan) {
			return rc.fail(fmt.Errorf("%w: remaining steps skipped: %w", ErrRunCancelled, err))
		}
	}
	return nil
}

// executeStep выполняет текущий шаг и формирует его результат.
func (r *Runner) executeStep(ctx context.Context, rc *runContext) (res domain.StepResult, err error) {
	step := rc.step()
	logger := telemetry.WithStep(rc.logger, step)

	res = domain.StepResult{
		Index:     rc.index,
		Name:      step,
		StartedAt: time.Now(),
	}
	defer func() {
		res.FinishedAt = time.Now()
		switch {
		case err == nil:
			res.Status = domain.StepStatusSucceeded
			logger.Info("step finished", "duration", res.Duration())
		case ctx.Err() != nil:
			res.Status = domain.StepStatusCancelled
			res.Error = err.Error()
			logger.Warn("step cancelled", "error", err)
		default:
			res.Status = domain.StepStatusFailed
			res.Error = err.Error()
			logger.Error("step failed", "error", err, "duration", res.Duration())
		}
	}()

	if r.handlers == nil {
		return res, fmt.Errorf("%w: %s: no handlers configured", steps.ErrStepNotFound, step)
	}

	// Handler ищется в момент выполнения, а не при регистрации задачи
	handler, options, err := r.handlers.Lookup(step)
	if err != nil {
		return res, err
	}
	res.Type = handler.Type()

	req := steps.NewRequest(step, options, rc.env)
	req.Task = rc.run.Task
	req.RunID = rc.run.ID.String()

	logger.Info("step started", "type", res.Type)

	resp, err := invoke(ctx, handler, req)
	if resp != nil {
		res.Outputs = resp.Outputs
	}
	return res, err
}

// invoke вызывает handler, превращая панику в ошибку шага.
func invoke(ctx context.Context, h steps.Handler, req *steps.Request) (resp *steps.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Type(), p)
		}
	}()
	return h.Execute(ctx, req)
}
