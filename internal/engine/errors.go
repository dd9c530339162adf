package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки реестра задач.
var (
	// ErrEmptyTaskName — задача без имени.
	ErrEmptyTaskName = errors.New("task has empty name")

	// ErrEmptyStepName — ссылка на шаг без имени.
	ErrEmptyStepName = errors.New("step reference has empty name")

	// ErrDuplicateTask — задача с таким именем уже зарегистрирована.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrUnknownTask — задача не зарегистрирована.
	ErrUnknownTask = errors.New("unknown task")

	// ErrCyclicReference — задача (транзитивно) ссылается на саму себя.
	ErrCyclicReference = errors.New("cyclic task reference")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// DuplicateTaskError возвращается Register при политике PolicyReject.
type DuplicateTaskError struct {
	Name string
}

// Error реализует интерфейс error.
func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// Unwrap возвращает базовую ошибку.
func (e *DuplicateTaskError) Unwrap() error {
	return ErrDuplicateTask
}

// UnknownTaskError — запрошенная или упомянутая задача не зарегистрирована.
type UnknownTaskError struct {
	Name string

	// ReferencedBy — задача, ссылающаяся на Name. Пусто для запроса верхнего уровня.
	ReferencedBy string
}

// Error реализует интерфейс error.
func (e *UnknownTaskError) Error() string {
	if e.ReferencedBy != "" {
		return fmt.Sprintf("task %q referenced by %q is not registered", e.Name, e.ReferencedBy)
	}
	return fmt.Sprintf("task %q is not registered", e.Name)
}

// Unwrap возвращает базовую ошибку.
func (e *UnknownTaskError) Unwrap() error {
	return ErrUnknownTask
}

// CyclicReferenceError — цикл при развёртывании задачи.
type CyclicReferenceError struct {
	// Path — цепочка задач, замыкающаяся на первую: [a b c a].
	Path []string
}

// Error реализует интерфейс error.
func (e *CyclicReferenceError) Error() string {
	return "cyclic task reference: " + strings.Join(e.Path, " -> ")
}

// Unwrap возвращает базовую ошибку.
func (e *CyclicReferenceError) Unwrap() error {
	return ErrCyclicReference
}
