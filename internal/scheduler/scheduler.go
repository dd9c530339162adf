package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/runner"
)

const defaultTickInterval = time.Second

// Dispatcher запускает задачу в фоне. runner.Dispatcher реализует
// этот интерфейс.
type Dispatcher interface {
	Dispatch(task string, options map[string]string, trigger string) (*domain.Run, error)
}

// Leader решает, какой экземпляр serve обрабатывает расписания.
// repo.AdvisoryLock реализует этот интерфейс.
type Leader interface {
	TryLock(ctx context.Context) (bool, error)
}

// Scheduler — планировщик, запускающий задачи по расписаниям.
type Scheduler struct {
	dispatcher Dispatcher
	leader     Leader
	logger     *slog.Logger
	interval   time.Duration

	mu        sync.Mutex
	schedules []*domain.Schedule
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules  []domain.Schedule
	Dispatcher Dispatcher
	Leader     Leader // опционально; без него тик выполняется всегда
	Logger     *slog.Logger
	Interval   time.Duration // период тика (default: 1s)
}

// New создаёт Scheduler и вычисляет первое время запуска каждого
// расписания. Невалидное расписание — ошибка.
func New(cfg Config, now time.Time) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	s := &Scheduler{
		dispatcher: cfg.Dispatcher,
		leader:     cfg.Leader,
		logger:     logger,
		interval:   interval,
	}

	for i := range cfg.Schedules {
		sched := cfg.Schedules[i]
		if err := Validate(&sched); err != nil {
			return nil, err
		}
		next, err := CalculateNextDue(&sched, now)
		if err != nil {
			return nil, err
		}
		sched.NextDueAt = &next
		s.schedules = append(s.schedules, &sched)
	}

	return s, nil
}

// Schedules возвращает копию текущего состояния расписаний.
func (s *Scheduler) Schedules() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Schedule, len(s.schedules))
	for i, sched := range s.schedules {
		result[i] = *sched
	}
	return result
}

// Start запускает цикл тиков и блокируется до отмены ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedules", len(s.schedules), "interval", s.interval)

	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	for {
		select {
		case t := <-tk.C:
			if !s.isLeader(ctx) {
				continue
			}
			s.Tick(ctx, t)
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// isLeader проверяет лидерство. Ошибка проверки — пропуск тика.
func (s *Scheduler) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}
	ok, err := s.leader.TryLock(ctx)
	if err != nil {
		s.logger.Warn("leader check failed", "error", err)
		return false
	}
	return ok
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due расписания (enabled, next_due_at <= now)
// 2. Запускает задачу через Dispatcher
// 3. Вычисляет новое next_due_at
//
// Ошибки одного расписания не блокируют остальные. Если задача ещё
// выполняется с прошлого раза, запуск пропускается.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var started int
	for _, sched := range s.schedules {
		if !sched.IsDue(now) {
			continue
		}
		if s.processSchedule(ctx, sched, now) {
			started++
		}
	}

	if started > 0 {
		s.logger.Debug("scheduler tick completed", "runs_started", started)
	}
	return started
}

// processSchedule запускает задачу расписания и сдвигает next_due_at.
// Возвращает true, если run запущен.
func (s *Scheduler) processSchedule(_ context.Context, sched *domain.Schedule, now time.Time) bool {
	logger := s.logger.With("schedule", sched.Name, "task", sched.Task)

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		logger.Error("failed to calculate next due, disabling schedule", "error", err)
		sched.Enabled = false
		return false
	}

	run, err := s.dispatcher.Dispatch(sched.Task, sched.Options, triggerName(sched))
	if err != nil {
		if errors.Is(err, runner.ErrTaskRunning) {
			logger.Warn("task still running, skipping scheduled run")
		} else {
			logger.Error("failed to start scheduled run", "error", err)
		}
		sched.NextDueAt = &nextDue
		return false
	}

	sched.RecordRun(run.ID, now, nextDue)
	logger.Info("scheduled run started", "run_id", run.ID, "next_due_at", nextDue)
	return true
}

func triggerName(sched *domain.Schedule) string {
	return fmt.Sprintf("schedule:%s", sched.Name)
}
