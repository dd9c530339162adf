package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/steps"
)

// ErrTaskRunning — задача уже выполняется. Run'ы одной задачи
// не запускаются параллельно.
var ErrTaskRunning = errors.New("task is already running")

// Dispatcher запускает run'ы в фоне для serve: по расписанию и по HTTP.
//
// Одновременно выполняется не более одного run каждой задачи.
type Dispatcher struct {
	runner *Runner
	base   *steps.Environment
	ctx    context.Context

	mu     sync.Mutex
	active map[string]*domain.Run
	wg     sync.WaitGroup
}

// NewDispatcher создаёт Dispatcher. ctx ограничивает время жизни всех
// запущенных run'ов: его отмена прерывает их.
func NewDispatcher(ctx context.Context, r *Runner, base *steps.Environment) *Dispatcher {
	if base == nil {
		base = steps.NewEnvironment(nil)
	}
	return &Dispatcher{
		runner: r,
		base:   base,
		ctx:    ctx,
		active: make(map[string]*domain.Run),
	}
}

// Dispatch запускает задачу в фоне и сразу возвращает снимок run
// в статусе PENDING.
//
// Ошибки:
//   - ErrTaskRunning — run этой задачи ещё не завершён
//   - ошибки разрешения задачи (engine.UnknownTaskError, engine.CyclicReferenceError)
func (d *Dispatcher) Dispatch(task string, options map[string]string, trigger string) (*domain.Run, error) {
	env := d.environment(options)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.active[task]; busy {
		return nil, fmt.Errorf("%w: %s", ErrTaskRunning, task)
	}

	run, err := d.runner.Prepare(task, env)
	if err != nil {
		return nil, err
	}
	run.Trigger = trigger
	snapshot := *run

	d.active[task] = run
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(task)
		// Ошибка уже записана в run и залогирована runner'ом
		_ = d.runner.Execute(d.ctx, run, env)
	}()

	return &snapshot, nil
}

// Active возвращает отсортированный список выполняющихся задач.
func (d *Dispatcher) Active() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks := make([]string, 0, len(d.active))
	for task := range d.active {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// Wait ждёт завершения всех запущенных run'ов.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) release(task string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, task)
}

// environment строит окружение run: базовое плюс параметры запуска.
func (d *Dispatcher) environment(options map[string]string) *steps.Environment {
	env := *d.base
	env.Options = maps.Clone(d.base.Options)
	if env.Options == nil {
		env.Options = make(map[string]string)
	}
	maps.Copy(env.Options, options)
	return &env
}
