package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/repo"
)

// Dispatcher запускает задачи в фоне.
type Dispatcher interface {
	Dispatch(task string, options map[string]string, trigger string) (*domain.Run, error)
	Active() []string
}

// RunHistory — чтение истории run'ов.
type RunHistory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	Count(ctx context.Context, filter repo.RunFilter) (int, error)
}

// ScheduleLister отдаёт текущее состояние расписаний.
type ScheduleLister interface {
	Schedules() []domain.Schedule
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks      *engine.Registry
	dispatcher Dispatcher
	runs       RunHistory
	schedules  ScheduleLister
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks      *engine.Registry
	Dispatcher Dispatcher

	// Runs — история. nil, если DB_URL не задан.
	Runs RunHistory

	// Schedules — nil, если scheduler не запущен.
	Schedules ScheduleLister

	// Gatherer — источник метрик для /metrics.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		tasks:      cfg.Tasks,
		dispatcher: cfg.Dispatcher,
		runs:       cfg.Runs,
		schedules:  cfg.Schedules,
		gatherer:   gatherer,
		logger:     logger,
	}
}
