package mq

import (
	"context"

	"github.com/shaiso/conveyor/internal/domain"
)

// EventPublisher публикует события run. Publisher реализует этот интерфейс.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, msgType MessageType, payload RunEventPayload) error
}

// EventObserver — наблюдатель runner'а, публикующий события
// run.started, step.finished и run.finished.
type EventObserver struct {
	publisher EventPublisher
}

// NewEventObserver создаёт EventObserver.
func NewEventObserver(publisher EventPublisher) *EventObserver {
	return &EventObserver{publisher: publisher}
}

// RunStarted публикует run.started.
func (o *EventObserver) RunStarted(ctx context.Context, run *domain.Run) error {
	return o.publisher.PublishRunEvent(ctx, MessageTypeRunStarted, runPayload(run))
}

// StepFinished публикует step.finished.
func (o *EventObserver) StepFinished(ctx context.Context, run *domain.Run, res domain.StepResult) error {
	payload := runPayload(run)
	payload.Status = res.Status.String()
	payload.Step = res.Name
	payload.StepIndex = res.Index
	payload.Error = res.Error
	payload.DurationMs = res.Duration().Milliseconds()
	return o.publisher.PublishRunEvent(ctx, MessageTypeStepFinished, payload)
}

// RunFinished публикует run.finished.
func (o *EventObserver) RunFinished(ctx context.Context, run *domain.Run) error {
	payload := runPayload(run)
	payload.Step = run.FailedStep
	payload.Error = run.Error
	payload.DurationMs = run.Duration().Milliseconds()
	return o.publisher.PublishRunEvent(ctx, MessageTypeRunFinished, payload)
}

func runPayload(run *domain.Run) RunEventPayload {
	return RunEventPayload{
		RunID:   run.ID,
		Task:    run.Task,
		Status:  run.Status.String(),
		Trigger: run.Trigger,
	}
}
