// Package cli реализует инструмент командной строки conveyor.
//
// # Обзор
//
// Локальные команды загружают conveyor.yaml и работают с проектом
// напрямую:
//
//	conveyor run [task...] [--key=value ...]
//	conveyor list
//	conveyor check
//	conveyor schedules
//
// Режим serve запускает HTTP API, расписания и приём запросов из RabbitMQ:
//
//	conveyor serve
//
// Команды для работы с инфраструктурой serve:
//   - history — история run'ов из PostgreSQL (DB_URL)
//   - trigger — запрос на запуск через RabbitMQ (RABBITMQ_URL)
//   - remote  — HTTP-клиент API serve (--api-url)
//
// # Параметры запуска
//
// run разбирает аргументы сам: всё, что начинается с "--", кроме
// --config и --json, становится параметром задачи и доступно шаблонам
// как .Options:
//
//	conveyor run release --tag=v1.0.0 --draft --no-prerelease
//	// Options: {"tag": "v1.0.0", "draft": "true", "prerelease": "false"}
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) и логи — в stderr.
// Это позволяет использовать pipe: conveyor list --json | jq .
package cli
