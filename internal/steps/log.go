package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// StepTypeLog — тип шага записи сообщения в лог.
const StepTypeLog = "log"

// LogStep — пишет сообщение в лог и в stdout.
//
// Конфигурация:
//
//	{"message": "Releasing {{ .Pkg.name }} {{ .Options.tag }}", "level": "info"}
type LogStep struct{}

// NewLogStep создаёт новый LogStep.
func NewLogStep() *LogStep {
	return &LogStep{}
}

// Type возвращает тип шага.
func (s *LogStep) Type() string {
	return StepTypeLog
}

// Execute пишет сообщение.
func (s *LogStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeLog, err)
	}

	message := GetConfigString(options, "message")
	if message == "" {
		return nil, fmt.Errorf("%w: %s: message is required", ErrInvalidConfig, StepTypeLog)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(GetConfigString(options, "level")))); err != nil {
		level = slog.LevelInfo
	}

	req.Logger().Log(ctx, level, message)
	fmt.Fprintln(req.stdout(), message)

	return NewResponse(map[string]any{"message": message}), nil
}
