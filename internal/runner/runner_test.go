package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/steps"
)

// fakeHandler записывает вызовы и возвращает заданную ошибку.
type fakeHandler struct {
	name  string
	calls *[]string
	err   error
	fn    func(ctx context.Context, req *steps.Request) error
}

func (h *fakeHandler) Type() string { return "fake" }

func (h *fakeHandler) Execute(ctx context.Context, req *steps.Request) (*steps.Response, error) {
	*h.calls = append(*h.calls, h.name)
	if h.fn != nil {
		if err := h.fn(ctx, req); err != nil {
			return nil, err
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return steps.NewResponse(map[string]any{"step": req.Step}), nil
}

// fakeLookup — таблица handler'ов по имени шага.
type fakeLookup struct {
	handlers map[string]*fakeHandler
	calls    []string
}

func newFakeLookup(names ...string) *fakeLookup {
	l := &fakeLookup{handlers: make(map[string]*fakeHandler)}
	for _, n := range names {
		l.handlers[n] = &fakeHandler{name: n, calls: &l.calls}
	}
	return l
}

func (l *fakeLookup) Lookup(step string) (steps.Handler, map[string]any, error) {
	h, ok := l.handlers[step]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", steps.ErrStepNotFound, step)
	}
	return h, map[string]any{}, nil
}

// recordingObserver собирает события.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (o *recordingObserver) RunStarted(_ context.Context, run *domain.Run) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "started:"+run.Task)
	return o.err
}

func (o *recordingObserver) StepFinished(_ context.Context, _ *domain.Run, res domain.StepResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, res.Name+":"+res.Status.String())
	return o.err
}

func (o *recordingObserver) RunFinished(_ context.Context, run *domain.Run) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "finished:"+run.Status.String())
	return o.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv() *steps.Environment {
	env := steps.NewEnvironment(map[string]string{"tag": "v1"})
	env.Stdout = io.Discard
	env.Stderr = io.Discard
	return env
}

func mustRegister(t *testing.T, reg *engine.Registry, name string, refs ...engine.StepRef) {
	t.Helper()
	if err := reg.Register(name, refs); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "test",
		engine.Step("lint"), engine.Step("clean"), engine.Step("build"), engine.Step("unitTest"))

	lookup := newFakeLookup("lint", "clean", "build", "unitTest")
	cleanErr := errors.New("permission denied")
	lookup.handlers["clean"].err = cleanErr

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	run, err := r.Run(context.Background(), "test", newTestEnv())

	if !equalStrings(lookup.calls, []string{"lint", "clean"}) {
		t.Errorf("expected lint and clean invoked, got %v", lookup.calls)
	}

	stepErr, ok := IsStepExecutionError(err)
	if !ok {
		t.Fatalf("expected StepExecutionError, got %v", err)
	}
	if stepErr.Step != "clean" || stepErr.Index != 1 || stepErr.Task != "test" {
		t.Errorf("unexpected error identity: %+v", stepErr)
	}
	if errors.Unwrap(err) != cleanErr {
		t.Errorf("expected handler error verbatim, got %v", errors.Unwrap(err))
	}

	if run.Status != domain.RunStatusFailed || run.FailedStep != "clean" {
		t.Errorf("unexpected run state: %s %s", run.Status, run.FailedStep)
	}
	if len(run.Steps) != 2 || run.Steps[1].Status != domain.StepStatusFailed {
		t.Errorf("unexpected step results: %+v", run.Steps)
	}
}

func TestRunner_NestedTasks(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "lint", engine.Step("jshint"), engine.Step("jslint"))
	mustRegister(t, reg, "build", engine.Task("lint"), engine.Step("uglify"))
	mustRegister(t, reg, "default", engine.Task("build"), engine.Step("compress"))

	lookup := newFakeLookup("jshint", "jslint", "uglify", "compress")
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	run, err := r.Run(context.Background(), "default", newTestEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"jshint", "jslint", "uglify", "compress"}
	if !equalStrings(lookup.calls, want) {
		t.Errorf("expected %v, got %v", want, lookup.calls)
	}
	if !equalStrings(run.Plan, want) {
		t.Errorf("expected plan %v, got %v", want, run.Plan)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	if run.Steps[2].Outputs["step"] != "uglify" {
		t.Errorf("outputs should be recorded, got %v", run.Steps[2].Outputs)
	}
	if run.Options["tag"] != "v1" {
		t.Errorf("options should be recorded, got %v", run.Options)
	}
}

func TestRunner_EmptyTask(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "noop")

	lookup := newFakeLookup()
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	run, err := r.Run(context.Background(), "noop", newTestEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lookup.calls) != 0 {
		t.Errorf("no handler should be invoked, got %v", lookup.calls)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
}

func TestRunner_ResolutionErrors(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "a", engine.Step("x"), engine.Task("b"))
	mustRegister(t, reg, "b", engine.Task("a"))
	mustRegister(t, reg, "c", engine.Task("missing"))

	lookup := newFakeLookup("x")
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	tests := []struct {
		task string
		want error
	}{
		{"a", engine.ErrCyclicReference},
		{"c", engine.ErrUnknownTask},
		{"nope", engine.ErrUnknownTask},
	}

	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			run, err := r.Run(context.Background(), tt.task, newTestEnv())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if run != nil {
				t.Error("no run should be created")
			}
		})
	}

	if len(lookup.calls) != 0 {
		t.Errorf("no handler should be invoked, got %v", lookup.calls)
	}
}

func TestRunner_UnknownStepAtExecution(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("lint"), engine.Step("sass"), engine.Step("uglify"))

	lookup := newFakeLookup("lint", "uglify")
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	_, err := r.Run(context.Background(), "build", newTestEnv())
	if !errors.Is(err, steps.ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}
	stepErr, _ := IsStepExecutionError(err)
	if stepErr == nil || stepErr.Step != "sass" {
		t.Errorf("expected failing step sass, got %v", err)
	}
	if !equalStrings(lookup.calls, []string{"lint"}) {
		t.Errorf("expected only lint invoked, got %v", lookup.calls)
	}
}

func TestRunner_LookupAtExecutionTime(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("uglify"))

	// Шаг привязывается после регистрации задачи
	lookup := newFakeLookup()
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	lookup.handlers["uglify"] = &fakeHandler{name: "uglify", calls: &lookup.calls}

	if _, err := r.Run(context.Background(), "build", newTestEnv()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(lookup.calls, []string{"uglify"}) {
		t.Errorf("expected uglify invoked, got %v", lookup.calls)
	}
}

func TestRunner_Cancellation(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "release", engine.Step("build"), engine.Step("publish"), engine.Step("notify"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := newFakeLookup("build", "publish", "notify")
	lookup.handlers["publish"].fn = func(ctx context.Context, _ *steps.Request) error {
		cancel()
		<-ctx.Done()
		return fmt.Errorf("%w: %v", steps.ErrStepCancelled, ctx.Err())
	}

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	run, err := r.Run(ctx, "release", newTestEnv())

	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}
	if !errors.Is(err, steps.ErrStepCancelled) {
		t.Errorf("handler error should be preserved, got %v", err)
	}
	if !equalStrings(lookup.calls, []string{"build", "publish"}) {
		t.Errorf("notify must not run, got %v", lookup.calls)
	}
	if run.Status != domain.RunStatusCancelled || run.FailedStep != "publish" {
		t.Errorf("unexpected run state: %s %s", run.Status, run.FailedStep)
	}
	if run.Steps[1].Status != domain.StepStatusCancelled {
		t.Errorf("expected cancelled step, got %s", run.Steps[1].Status)
	}
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("uglify"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := newFakeLookup("uglify")
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	run, err := r.Run(ctx, "build", newTestEnv())
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}
	if len(lookup.calls) != 0 {
		t.Errorf("no handler should be invoked, got %v", lookup.calls)
	}
	if run.Status != domain.RunStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", run.Status)
	}
}

func TestRunner_CancelledDuringSuccessfulStep(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "release", engine.Step("build"), engine.Step("publish"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := newFakeLookup("build", "publish")
	lookup.handlers["build"].fn = func(context.Context, *steps.Request) error {
		cancel()
		return nil
	}

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	run, err := r.Run(ctx, "release", newTestEnv())

	stepErr, ok := IsStepExecutionError(err)
	if !ok || !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected cancelled step error, got %v", err)
	}
	if stepErr.Step != "build" || stepErr.Index != 0 {
		t.Errorf("cancellation should name the step in flight, got %s at %d", stepErr.Step, stepErr.Index)
	}
	if !equalStrings(lookup.calls, []string{"build"}) {
		t.Errorf("publish must not run, got %v", lookup.calls)
	}
	if len(run.Steps) != 1 || run.FailedStep != "build" || run.Status != domain.RunStatusCancelled {
		t.Errorf("unexpected run state: %s %s %d steps", run.Status, run.FailedStep, len(run.Steps))
	}
}

func TestRunner_CancelledAfterLastStep(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("uglify"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := newFakeLookup("uglify")
	lookup.handlers["uglify"].fn = func(context.Context, *steps.Request) error {
		cancel()
		return nil
	}

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	run, err := r.Run(ctx, "build", newTestEnv())
	if err != nil {
		t.Fatalf("all steps finished, got %v", err)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
}

func TestRunner_HandlerPanic(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("uglify"), engine.Step("compress"))

	lookup := newFakeLookup("uglify", "compress")
	lookup.handlers["uglify"].fn = func(context.Context, *steps.Request) error {
		panic("boom")
	}

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	_, err := r.Run(context.Background(), "build", newTestEnv())

	stepErr, ok := IsStepExecutionError(err)
	if !ok || stepErr.Step != "uglify" {
		t.Fatalf("expected uglify failure, got %v", err)
	}
	if !equalStrings(lookup.calls, []string{"uglify"}) {
		t.Errorf("compress must not run, got %v", lookup.calls)
	}
}

func TestRunner_RequestCarriesRunData(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("uglify"))

	var got *steps.Request
	lookup := newFakeLookup("uglify")
	lookup.handlers["uglify"].fn = func(_ context.Context, req *steps.Request) error {
		got = req
		return nil
	}

	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})
	run, err := r.Run(context.Background(), "build", newTestEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Task != "build" || got.Step != "uglify" || got.RunID != run.ID.String() {
		t.Errorf("unexpected request: task=%s step=%s run=%s", got.Task, got.Step, got.RunID)
	}
	if got.Env.Option("tag") != "v1" {
		t.Errorf("environment options should be passed, got %v", got.Env.Options)
	}
}

func TestRunner_Observers(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "test", engine.Step("lint"), engine.Step("clean"), engine.Step("build"))

	lookup := newFakeLookup("lint", "clean", "build")
	lookup.handlers["clean"].err = errors.New("boom")

	// Ошибка наблюдателя не меняет исход run
	obs := &recordingObserver{err: errors.New("observer down")}
	r := New(Config{Tasks: reg, Handlers: lookup, Observers: []Observer{obs}, Logger: quietLogger()})

	_, err := r.Run(context.Background(), "test", newTestEnv())
	if stepErr, ok := IsStepExecutionError(err); !ok || stepErr.Step != "clean" {
		t.Fatalf("expected clean failure, got %v", err)
	}

	want := []string{"started:test", "lint:SUCCEEDED", "clean:FAILED", "finished:FAILED"}
	if !equalStrings(obs.events, want) {
		t.Errorf("expected events %v, got %v", want, obs.events)
	}
}

func TestRunner_ConcurrentOverwrite(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "build", engine.Step("a1"), engine.Step("a2"))

	lookup := newFakeLookup()
	r := New(Config{Tasks: reg, Handlers: lookup, Logger: quietLogger()})

	old := []string{"a1", "a2"}
	replacement := []string{"b1", "b2", "b3"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			refs := engine.Refs(old, nil)
			if i%2 == 0 {
				refs = engine.Refs(replacement, nil)
			}
			_ = reg.Register("build", refs)
		}
	}()

	for i := 0; i < 100; i++ {
		run, err := r.Prepare("build", nil)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		if !equalStrings(run.Plan, old) && !equalStrings(run.Plan, replacement) {
			t.Fatalf("observed a mixed sequence: %v", run.Plan)
		}
	}
	wg.Wait()
}
