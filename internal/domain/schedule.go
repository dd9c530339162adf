package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска задачи.
//
// Schedule позволяет запускать задачу:
// - По cron-выражению: "0 3 * * *" (каждый день в 3:00)
// - По интервалу: каждые N секунд
//
// Расписания читаются из конфигурации при старте serve.
type Schedule struct {
	// Name — имя расписания.
	Name string `json:"name"`

	// Task — задача, которую нужно запускать.
	Task string `json:"task"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// Options — параметры запуска, как --key=value в CLI.
	Options map[string]string `json:"options,omitempty"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRunID — ID последнего run.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(runID uuid.UUID, at, nextDue time.Time) {
	s.LastRunAt = &at
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
}
