package steps

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayStep_Durations(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		want    time.Duration
		wantErr bool
	}{
		{"duration string", map[string]any{"duration": "20ms"}, 20 * time.Millisecond, false},
		{"milliseconds", map[string]any{"duration_ms": 10}, 10 * time.Millisecond, false},
		{"templated milliseconds", map[string]any{"duration_ms": "{{ .Options.wait }}"}, 15 * time.Millisecond, false},
		{"seconds win over ms", map[string]any{"duration_sec": 2, "duration_ms": 10}, 2 * time.Second, false},
		{"bad string", map[string]any{"duration": "soon"}, 0, true},
		{"negative string", map[string]any{"duration": "-1s"}, 0, true},
		{"missing", map[string]any{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("wait", tt.options, NewEnvironment(map[string]string{"wait": "15"}))
			options, err := req.RenderOptions()
			if err != nil {
				t.Fatalf("render: %v", err)
			}

			got, err := delayDuration(options)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDelayStep_Execute(t *testing.T) {
	req := NewRequest("wait", map[string]any{"duration_ms": 30}, nil)

	start := time.Now()
	resp, err := NewDelayStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %s", elapsed)
	}
	if resp.Outputs["duration_ms"] != int64(30) {
		t.Errorf("duration_ms = %v", resp.Outputs["duration_ms"])
	}
}

func TestDelayStep_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	req := NewRequest("wait", map[string]any{"duration": "10s"}, nil)

	start := time.Now()
	_, err := NewDelayStep().Execute(ctx, req)
	if !errors.Is(err, ErrStepCancelled) {
		t.Fatalf("expected ErrStepCancelled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation was not honoured")
	}
}
