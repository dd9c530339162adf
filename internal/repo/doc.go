// Package repo хранит историю run'ов в PostgreSQL.
//
// История опциональна и включается переменной DB_URL. Таблицы
// создаются Migrate при старте.
//
// Структура:
//   - db.go       — пул соединений, схема, advisory lock для serve
//   - run_repo.go — RunRepo (Create, Update, GetByID, List)
//   - recorder.go — Recorder, наблюдатель runner'а
package repo
