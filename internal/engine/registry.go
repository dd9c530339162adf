package engine

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/gammazero/toposort"
)

// DuplicatePolicy определяет поведение Register для уже существующего имени.
type DuplicatePolicy string

const (
	// PolicyOverwrite — новое определение атомарно заменяет старое.
	PolicyOverwrite DuplicatePolicy = "overwrite"

	// PolicyReject — повторная регистрация возвращает DuplicateTaskError.
	PolicyReject DuplicatePolicy = "reject"
)

// ParsePolicy парсит строку в DuplicatePolicy. Пустая строка — PolicyOverwrite.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (expected %q or %q)", s, PolicyOverwrite, PolicyReject)
	}
}

// Registry — реестр задач.
//
// Хранит определения задач и разворачивает их в плоские
// последовательности конкретных шагов. Потокобезопасен:
// Resolve всегда видит либо старое, либо новое определение задачи.
type Registry struct {
	mu     sync.RWMutex
	policy DuplicatePolicy
	tasks  map[string]*TaskDef
}

// NewRegistry создаёт пустой реестр с заданной политикой дубликатов.
func NewRegistry(policy DuplicatePolicy) *Registry {
	if policy == "" {
		policy = PolicyOverwrite
	}
	return &Registry{
		policy: policy,
		tasks:  make(map[string]*TaskDef),
	}
}

// Policy возвращает политику дубликатов реестра.
func (r *Registry) Policy() DuplicatePolicy {
	return r.policy
}

// Register регистрирует задачу name с последовательностью steps.
func (r *Registry) Register(name string, steps []StepRef) error {
	return r.RegisterDef(TaskDef{Name: name, Steps: steps})
}

// RegisterDef регистрирует определение задачи.
// Определение копируется, последующие изменения def на реестр не влияют.
func (r *Registry) RegisterDef(def TaskDef) error {
	if def.Name == "" {
		return ErrEmptyTaskName
	}
	for _, ref := range def.Steps {
		if ref.Name == "" {
			return fmt.Errorf("task %q: %w", def.Name, ErrEmptyStepName)
		}
	}

	stored := def.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[def.Name]; exists && r.policy == PolicyReject {
		return &DuplicateTaskError{Name: def.Name}
	}
	r.tasks[def.Name] = stored
	return nil
}

// Get возвращает копию определения задачи.
func (r *Registry) Get(name string) (TaskDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tasks[name]
	if !ok {
		return TaskDef{}, &UnknownTaskError{Name: name}
	}
	return *def.clone(), nil
}

// Has проверяет, зарегистрирована ли задача.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[name]
	return ok
}

// Names возвращает отсортированный список имён задач.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество зарегистрированных задач.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Resolve разворачивает задачу в плоскую последовательность конкретных шагов.
//
// Ссылки на задачи разворачиваются рекурсивно (в глубину). Задача, на которую
// ссылаются дважды без цикла, разворачивается оба раза.
//
// Ошибки:
//   - UnknownTaskError — задача (или ссылка внутри неё) не зарегистрирована
//   - CyclicReferenceError — развёртывание вернулось в задачу из текущего стека
func (r *Registry) Resolve(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	x := &expansion{
		tasks:   r.tasks,
		onStack: make(map[string]bool),
		out:     make([]string, 0),
	}
	if err := x.expand(name, ""); err != nil {
		return nil, err
	}
	return x.out, nil
}

// expansion — состояние одного развёртывания.
type expansion struct {
	tasks   map[string]*TaskDef
	onStack map[string]bool
	stack   []string
	out     []string
}

func (x *expansion) expand(name, parent string) error {
	if x.onStack[name] {
		start := slices.Index(x.stack, name)
		path := append(slices.Clone(x.stack[start:]), name)
		return &CyclicReferenceError{Path: path}
	}

	def, ok := x.tasks[name]
	if !ok {
		return &UnknownTaskError{Name: name, ReferencedBy: parent}
	}

	x.onStack[name] = true
	x.stack = append(x.stack, name)

	for _, ref := range def.Steps {
		if !ref.IsTask() {
			x.out = append(x.out, ref.Name)
			continue
		}
		if err := x.expand(ref.Name, name); err != nil {
			return err
		}
	}

	x.stack = x.stack[:len(x.stack)-1]
	delete(x.onStack, name)
	return nil
}

// Order возвращает имена задач в порядке зависимостей: задача идёт
// после всех задач, на которые она ссылается.
//
// Возвращает ошибку, если есть ссылка на незарегистрированную задачу
// или граф ссылок содержит цикл.
func (r *Registry) Order() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	var edges []toposort.Edge
	for _, name := range names {
		refs := r.tasks[name].TaskNames()
		if len(refs) == 0 {
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, ref := range refs {
			if _, ok := r.tasks[ref]; !ok {
				return nil, &UnknownTaskError{Name: ref, ReferencedBy: name}
			}
			if ref == name {
				return nil, &CyclicReferenceError{Path: []string{name, name}}
			}
			// Ребро (ref, name): ref должна идти раньше name
			edges = append(edges, toposort.Edge{ref, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, r.locateCycle(names, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// locateCycle находит конкретный цикл после того, как toposort сообщил о нём.
func (r *Registry) locateCycle(names []string, sortErr error) error {
	for _, name := range names {
		x := &expansion{
			tasks:   r.tasks,
			onStack: make(map[string]bool),
		}
		if err := x.expand(name, ""); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrCyclicReference, sortErr)
}

// Validate проверяет весь граф задач: все ссылки существуют, циклов нет.
func (r *Registry) Validate() error {
	_, err := r.Order()
	return err
}
