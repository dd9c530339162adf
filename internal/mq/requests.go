package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/runner"
)

// Dispatcher запускает задачу в фоне. runner.Dispatcher реализует
// этот интерфейс.
type Dispatcher interface {
	Dispatch(task string, options map[string]string, trigger string) (*domain.Run, error)
}

// RunRequestHandler возвращает Handler очереди runs.requests.
//
// Запросы на неизвестную задачу или задачу с циклом уходят в DLQ.
// Если задача уже выполняется, запрос подтверждается и пропускается:
// запуски одной задачи не накапливаются.
func RunRequestHandler(d Dispatcher, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(_ context.Context, msg *Delivery) error {
		if msg.Type != MessageTypeRunRequest {
			return fmt.Errorf("%w: unexpected message type %q", ErrPermanent, msg.Type)
		}

		var req RunRequestPayload
		if err := msg.Decode(&req); err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		if req.Task == "" {
			return fmt.Errorf("%w: task is required", ErrPermanent)
		}

		trigger := "mq"
		if req.RequestedBy != "" {
			trigger = "mq:" + req.RequestedBy
		}

		run, err := d.Dispatch(req.Task, req.Options, trigger)
		switch {
		case err == nil:
			logger.Info("run requested via mq", "task", req.Task, "run_id", run.ID, "message_id", msg.ID)
			return nil
		case errors.Is(err, runner.ErrTaskRunning):
			logger.Warn("task already running, request dropped", "task", req.Task, "message_id", msg.ID)
			return nil
		case errors.Is(err, engine.ErrUnknownTask), errors.Is(err, engine.ErrCyclicReference):
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		default:
			return err
		}
	}
}
