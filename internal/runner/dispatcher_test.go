package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/steps"
)

// finishObserver сигнализирует о завершении run.
type finishObserver struct {
	done chan *domain.Run
}

func (o *finishObserver) RunStarted(context.Context, *domain.Run) error { return nil }

func (o *finishObserver) StepFinished(context.Context, *domain.Run, domain.StepResult) error {
	return nil
}

func (o *finishObserver) RunFinished(_ context.Context, run *domain.Run) error {
	o.done <- run
	return nil
}

func TestDispatcher_RejectsConcurrentRun(t *testing.T) {
	reg := engine.NewRegistry(engine.PolicyOverwrite)
	mustRegister(t, reg, "release", engine.Step("publish"))

	release := make(chan struct{})
	lookup := newFakeLookup("publish")
	lookup.handlers["publish"].fn = func(context.Context, *steps.Request) error {
		<-release
		return nil
	}

	obs := &finishObserver{done: make(chan *domain.Run, 1)}
	r := New(Config{Tasks: reg, Handlers: lookup, Observers: []Observer{obs}, Logger: quietLogger()})
	d := NewDispatcher(context.Background(), r, newTestEnv())

	run, err := d.Dispatch("release", map[string]string{"tag": "v2"}, "api")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if run.Status != domain.RunStatusPending || run.Trigger != "api" {
		t.Errorf("unexpected snapshot: %s %s", run.Status, run.Trigger)
	}
	if run.Options["tag"] != "v2" {
		t.Errorf("options should override base, got %v", run.Options)
	}

	if _, err := d.Dispatch("release", nil, "api"); !errors.Is(err, ErrTaskRunning) {
		t.Errorf("expected ErrTaskRunning, got %v", err)
	}
	if active := d.Active(); len(active) != 1 || active[0] != "release" {
		t.Errorf("unexpected active tasks: %v", active)
	}

	close(release)

	select {
	case finished := <-obs.done:
		if finished.Status != domain.RunStatusSucceeded {
			t.Errorf("expected SUCCEEDED, got %s", finished.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	d.Wait()

	if len(d.Active()) != 0 {
		t.Error("task should be released after run")
	}
	if _, err := d.Dispatch("release", nil, "api"); err != nil {
		t.Errorf("task should be runnable again: %v", err)
	}
	<-obs.done
	d.Wait()
}

func TestDispatcher_UnknownTask(t *testing.T) {
	r := New(Config{Tasks: engine.NewRegistry(""), Handlers: newFakeLookup(), Logger: quietLogger()})
	d := NewDispatcher(context.Background(), r, nil)

	if _, err := d.Dispatch("nope", nil, "cron"); !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
	if len(d.Active()) != 0 {
		t.Error("failed dispatch must not mark task active")
	}
}
