// Package runner выполняет задачи conveyor.
//
// Runner разворачивает задачу через engine.Registry в плоскую
// последовательность шагов, затем для каждого шага находит handler
// (steps.Catalog) и вызывает его. Шаги выполняются строго по очереди,
// следующий начинается только после возврата предыдущего.
//
// # Ошибки
//
// Первая ошибка шага останавливает run:
//
//	run, err := r.Run(ctx, "test", env)
//	if stepErr, ok := runner.IsStepExecutionError(err); ok {
//	    fmt.Fprintf(os.Stderr, "step %s failed: %v\n", stepErr.Step, stepErr.Err)
//	}
//
// Повторов и отката нет. Отмена context прерывает run, ошибка в этом
// случае оборачивает ErrRunCancelled.
//
// # Наблюдатели
//
// Observer получает RunStarted, StepFinished и RunFinished. Через них
// подключаются метрики (telemetry.Metrics), история (repo.Recorder)
// и публикация событий (mq.EventObserver).
package runner
