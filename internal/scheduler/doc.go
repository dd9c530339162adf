// Package scheduler запускает задачи по расписаниям.
//
// Расписания задаются в конфигурации (cron-выражение или интервал)
// и живут в памяти процесса serve.
//
// Структура:
//   - scheduler.go — Scheduler (Start, Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules:  project.Schedules,
//	    Dispatcher: dispatcher,
//	    Leader:     lock,  // опционально
//	    Logger:     logger,
//	}, time.Now())
//
//	go sched.Start(ctx)
//
// Leader Election:
//
// При нескольких экземплярах serve с общей БД расписания обрабатывает
// только владелец pg_try_advisory_lock (repo.AdvisoryLock).
package scheduler
