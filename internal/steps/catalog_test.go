package steps

import (
	"errors"
	"testing"
)

func TestCatalog_BindLookup(t *testing.T) {
	c := NewCatalog(DefaultRegistry())

	options := map[string]any{"paths": []any{"dest/"}}
	if err := c.Bind("clean:dest", Binding{Type: StepTypeClean, Options: options}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	h, got, err := c.Lookup("clean:dest")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if h.Type() != StepTypeClean {
		t.Errorf("expected clean handler, got %s", h.Type())
	}

	// Изменения копии не затрагивают каталог
	got["paths"].([]any)[0] = "other/"
	_, again, _ := c.Lookup("clean:dest")
	if again["paths"].([]any)[0] != "dest/" {
		t.Error("lookup should return a copy of options")
	}

	// Исходные опции тоже отвязаны от каталога
	options["paths"] = "mutated"
	if b, _ := c.Binding("clean:dest"); b.Options["paths"] == "mutated" {
		t.Error("bind should copy options")
	}
}

func TestCatalog_UnknownStep(t *testing.T) {
	c := NewCatalog(nil)

	_, _, err := c.Lookup("jshint")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
}

func TestCatalog_UnknownHandlerType(t *testing.T) {
	c := NewCatalog(DefaultRegistry())

	err := c.Bind("sass", Binding{Type: "sass"})
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
	if c.Has("sass") {
		t.Error("failed binding must not be stored")
	}
}

func TestCatalog_EmptyStepName(t *testing.T) {
	c := NewCatalog(DefaultRegistry())

	if err := c.Bind("", Binding{Type: StepTypeLog}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCatalog_Rebind(t *testing.T) {
	c := NewCatalog(DefaultRegistry())

	_ = c.Bind("notify", Binding{Type: StepTypeLog, Options: map[string]any{"message": "a"}})
	_ = c.Bind("notify", Binding{Type: StepTypeDelay, Options: map[string]any{"duration_ms": 1}})

	h, _, err := c.Lookup("notify")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if h.Type() != StepTypeDelay {
		t.Errorf("expected rebinding to win, got %s", h.Type())
	}

	steps := c.Steps()
	if len(steps) != 1 || steps[0] != "notify" {
		t.Errorf("unexpected steps: %v", steps)
	}
}
