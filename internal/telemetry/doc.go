// Package telemetry обеспечивает наблюдаемость conveyor.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики run'ов и шагов
//
// CLI пишет логи в stderr текстом, serve — в stdout в JSON,
// метрики отдаются на /metrics.
package telemetry
