package steps

import (
	"context"
	"fmt"
	"time"
)

// StepTypeDelay — тип шага паузы.
const StepTypeDelay = "delay"

// DelayStep — пауза между шагами, например пока CDN подхватит
// опубликованный архив.
//
// Конфигурация (одно из):
//
//	{"duration": "1m30s"}
//	{"duration_sec": 10}
//	{"duration_ms": 500}
//
// Outputs:
//
//	{"duration_ms": 500}
type DelayStep struct{}

// NewDelayStep создаёт новый DelayStep.
func NewDelayStep() *DelayStep {
	return &DelayStep{}
}

// Type возвращает тип шага.
func (s *DelayStep) Type() string {
	return StepTypeDelay
}

// Execute ждёт указанное время или отмену run.
func (s *DelayStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeDelay, err)
	}

	d, err := delayDuration(options)
	if err != nil {
		return nil, err
	}

	req.Logger().Debug("waiting", "duration", d)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return NewResponse(map[string]any{"duration_ms": d.Milliseconds()}), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	}
}

// delayDuration читает длительность паузы.
func delayDuration(options map[string]any) (time.Duration, error) {
	if raw := GetConfigString(options, "duration"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%w: %s: bad duration %q", ErrInvalidConfig, StepTypeDelay, raw)
		}
		return d, nil
	}

	if sec := GetConfigInt(options, "duration_sec"); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}
	if ms := GetConfigInt(options, "duration_ms"); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration, duration_sec or duration_ms is required", ErrInvalidConfig, StepTypeDelay)
}
