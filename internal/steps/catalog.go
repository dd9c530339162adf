package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Binding — привязка имени шага к типу handler'а и его опциям.
type Binding struct {
	// Type — тип handler'а ("exec", "clean", ...).
	Type string

	// Options — опции шага. Runner их не читает.
	Options map[string]any
}

// Catalog — каталог шагов: имя шага → Binding.
//
// Handler ищется по имени в момент выполнения (Lookup), а не при
// регистрации задачи: один и тот же список задач можно запускать
// с разными привязками шагов.
type Catalog struct {
	mu       sync.RWMutex
	handlers *Registry
	bindings map[string]Binding
}

// NewCatalog создаёт пустой каталог поверх реестра handler'ов.
func NewCatalog(handlers *Registry) *Catalog {
	if handlers == nil {
		handlers = NewRegistry()
	}
	return &Catalog{
		handlers: handlers,
		bindings: make(map[string]Binding),
	}
}

// Handlers возвращает реестр handler'ов каталога.
func (c *Catalog) Handlers() *Registry {
	return c.handlers
}

// Bind привязывает шаг к handler'у. Существующая привязка заменяется.
// Тип handler'а должен быть зарегистрирован.
func (c *Catalog) Bind(step string, b Binding) error {
	if step == "" {
		return fmt.Errorf("%w: empty step name", ErrInvalidConfig)
	}
	if !c.handlers.Has(b.Type) {
		return fmt.Errorf("step %s: %w: handler type %q", step, ErrStepNotFound, b.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[step] = Binding{
		Type:    b.Type,
		Options: CloneOptions(b.Options),
	}
	return nil
}

// Lookup возвращает handler и копию опций шага.
// Возвращает ErrStepNotFound для неизвестного шага.
func (c *Catalog) Lookup(step string) (Handler, map[string]any, error) {
	c.mu.RLock()
	b, ok := c.bindings[step]
	c.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrStepNotFound, step)
	}

	h, err := c.handlers.Get(b.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("step %s: %w", step, err)
	}

	return h, CloneOptions(b.Options), nil
}

// Binding возвращает привязку шага.
func (c *Catalog) Binding(step string) (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bindings[step]
	return b, ok
}

// Has проверяет, привязан ли шаг.
func (c *Catalog) Has(step string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[step]
	return ok
}

// Steps возвращает отсортированный список привязанных шагов.
func (c *Catalog) Steps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.bindings))
	for name := range c.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
