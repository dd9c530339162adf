// Package api содержит HTTP API режима serve.
//
// Структура:
//   - handler.go          — Handler с DI (реестр задач, dispatcher, история, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (request id, logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - task_handler.go     — обработчики для /tasks
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//
// Запуск задачи асинхронный: POST /api/v1/tasks/{name}/runs возвращает
// 202 и снимок run, пока задача выполняется в фоне. Повторный запуск
// той же задачи до завершения предыдущего возвращает 409.
package api
