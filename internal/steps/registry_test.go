package steps

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type stubHandler struct{ typ string }

func (h stubHandler) Type() string { return h.typ }

func (h stubHandler) Execute(context.Context, *Request) (*Response, error) {
	return NewResponse(nil), nil
}

func TestRegistry_RegisterGet(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 0 {
		t.Fatalf("new registry should be empty, got %d", r.Count())
	}

	r.Register(stubHandler{typ: "sass"})
	r.Register(stubHandler{typ: "sass"})
	if r.Count() != 1 {
		t.Errorf("re-register should replace, got %d handlers", r.Count())
	}

	h, err := r.Get("sass")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.Type() != "sass" {
		t.Errorf("got %s", h.Type())
	}

	if _, err := r.Get("less"); !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	want := []string{"clean", "compress", "delay", "exec", "githooks", "http", "log"}
	if got := DefaultRegistry().Types(); !slices.Equal(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}
