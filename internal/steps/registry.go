package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр типов handler'ов.
//
// Позволяет регистрировать и получать реализации Handler по типу.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными handler'ами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewExecStep())
	r.Register(NewCleanStep())
	r.Register(NewCompressStep())
	r.Register(NewGitHooksStep())
	r.Register(NewHTTPStep())
	r.Register(NewDelayStep())
	r.Register(NewLogStep())

	return r
}

// Register регистрирует handler в реестре.
// Если handler с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get возвращает handler по типу.
// Возвращает ErrStepNotFound, если тип не зарегистрирован.
func (r *Registry) Get(handlerType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[handlerType]
	if !exists {
		return nil, fmt.Errorf("%w: handler type %s", ErrStepNotFound, handlerType)
	}

	return h, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(handlerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[handlerType]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
