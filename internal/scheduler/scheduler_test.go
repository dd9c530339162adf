package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/runner"
)

type fakeDispatcher struct {
	calls []string
	busy  map[string]bool
}

func (d *fakeDispatcher) Dispatch(task string, options map[string]string, trigger string) (*domain.Run, error) {
	d.calls = append(d.calls, task+"|"+trigger+"|"+options["tag"])
	if d.busy[task] {
		return nil, fmt.Errorf("%w: %s", runner.ErrTaskRunning, task)
	}
	run := domain.NewRun(task, nil, options)
	return run, nil
}

type fakeLeader struct {
	ok  bool
	err error
}

func (l *fakeLeader) TryLock(context.Context) (bool, error) {
	return l.ok, l.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"0 0 * * 0", false},
		{"@daily", false},
		{"0 0 3 * * *", true},
		{"not a cron", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateCronExpr(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sched   domain.Schedule
		wantErr bool
	}{
		{"cron", domain.Schedule{Name: "n", Task: "test", CronExpr: "0 3 * * *"}, false},
		{"interval", domain.Schedule{Name: "n", Task: "test", IntervalSec: 60}, false},
		{"no task", domain.Schedule{Name: "n", CronExpr: "0 3 * * *"}, true},
		{"no timing", domain.Schedule{Name: "n", Task: "test"}, true},
		{"bad cron", domain.Schedule{Name: "n", Task: "test", CronExpr: "x"}, true},
		{"bad timezone", domain.Schedule{Name: "n", Task: "test", CronExpr: "0 3 * * *", Timezone: "Mars/Olympus"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.sched)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		sched domain.Schedule
		want  time.Time
	}{
		{
			name:  "daily cron",
			sched: domain.Schedule{CronExpr: "0 3 * * *"},
			want:  time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "every 5 minutes",
			sched: domain.Schedule{CronExpr: "*/5 * * * *"},
			want:  time.Date(2024, 5, 10, 12, 35, 0, 0, time.UTC),
		},
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 90},
			want:  from.Add(90 * time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skip("tzdata not available")
	}

	from := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	sched := domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}

	got, err := CalculateNextDue(&sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 5, 10, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Error("next due should be in UTC")
	}
}

func TestScheduler_Tick(t *testing.T) {
	start := time.Date(2024, 5, 10, 2, 59, 0, 0, time.UTC)
	d := &fakeDispatcher{}

	s, err := New(Config{
		Schedules: []domain.Schedule{
			{Name: "nightly", Task: "test", CronExpr: "0 3 * * *", Enabled: true, Options: map[string]string{"tag": "nightly"}},
			{Name: "off", Task: "release", CronExpr: "0 3 * * *", Enabled: false},
		},
		Dispatcher: d,
		Logger:     quietLogger(),
	}, start)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if n := s.Tick(context.Background(), start.Add(30*time.Second)); n != 0 {
		t.Errorf("nothing should be due yet, started %d", n)
	}

	due := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	if n := s.Tick(context.Background(), due); n != 1 {
		t.Fatalf("expected 1 run, started %d", n)
	}
	if len(d.calls) != 1 || d.calls[0] != "test|schedule:nightly|nightly" {
		t.Errorf("unexpected dispatch calls: %v", d.calls)
	}

	state := s.Schedules()
	if state[0].LastRunID == nil || *state[0].LastRunID == uuid.Nil {
		t.Error("last run should be recorded")
	}
	wantNext := time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC)
	if !state[0].NextDueAt.Equal(wantNext) {
		t.Errorf("expected next due %s, got %s", wantNext, state[0].NextDueAt)
	}

	// Повторный тик в ту же секунду ничего не запускает
	if n := s.Tick(context.Background(), due); n != 0 {
		t.Errorf("schedule should not fire twice, started %d", n)
	}
}

func TestScheduler_SkipsRunningTask(t *testing.T) {
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	d := &fakeDispatcher{busy: map[string]bool{"test": true}}

	s, err := New(Config{
		Schedules:  []domain.Schedule{{Name: "often", Task: "test", IntervalSec: 60, Enabled: true}},
		Dispatcher: d,
		Logger:     quietLogger(),
	}, start)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := start.Add(time.Minute)
	if n := s.Tick(context.Background(), now); n != 0 {
		t.Errorf("busy task should be skipped, started %d", n)
	}

	state := s.Schedules()
	if state[0].LastRunID != nil {
		t.Error("skipped run must not be recorded")
	}
	if !state[0].NextDueAt.Equal(now.Add(time.Minute)) {
		t.Errorf("next due should advance, got %s", state[0].NextDueAt)
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Schedules:  []domain.Schedule{{Name: "bad", Task: "test", CronExpr: "61 * * * *"}},
		Dispatcher: &fakeDispatcher{},
	}, time.Now())
	if err == nil {
		t.Error("expected error for invalid cron")
	}
}

func TestScheduler_Leader(t *testing.T) {
	s, _ := New(Config{Dispatcher: &fakeDispatcher{}, Logger: quietLogger()}, time.Now())
	if !s.isLeader(context.Background()) {
		t.Error("without leader every instance should tick")
	}

	s.leader = &fakeLeader{ok: false}
	if s.isLeader(context.Background()) {
		t.Error("expected follower")
	}

	s.leader = &fakeLeader{ok: true, err: errors.New("db down")}
	if s.isLeader(context.Background()) {
		t.Error("leader check error should skip tick")
	}
}
