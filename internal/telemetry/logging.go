package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel читает уровень из LOG_LEVEL (DEBUG, INFO, WARN, ERROR).
// Неизвестное или пустое значение даёт INFO.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(os.Getenv("LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetupLogger настраивает глобальный логгер для conveyor serve.
// Пишет в stdout, по умолчанию JSON. LOG_FORMAT=text переключает на text.
func SetupLogger() *slog.Logger {
	return install(os.Stdout, os.Getenv("LOG_FORMAT") != "text")
}

// SetupCLILogger настраивает глобальный логгер для команд CLI.
// Логи идут в w (обычно stderr), чтобы не смешиваться с выводом
// инструментов. По умолчанию text, LOG_FORMAT=json включает JSON.
func SetupCLILogger(w io.Writer) *slog.Logger {
	return install(w, os.Getenv("LOG_FORMAT") == "json")
}

func install(w io.Writer, asJSON bool) *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON {
		h = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер запроса в context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext достаёт логгер из context, иначе slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID добавляет run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithTask добавляет task.
func WithTask(logger *slog.Logger, task string) *slog.Logger {
	return logger.With("task", task)
}

// WithStep добавляет step.
func WithStep(logger *slog.Logger, step string) *slog.Logger {
	return logger.With("step", step)
}
