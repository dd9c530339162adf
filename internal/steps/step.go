package steps

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"

	"github.com/shaiso/conveyor/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — шаг или тип handler'а не найден.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidConfig — невалидные опции шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepTimeout — шаг превысил таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrCommandFailed — внешняя команда завершилась с ненулевым кодом.
	ErrCommandFailed = errors.New("command failed")

	// ErrHTTPStatus — HTTP ответ со статусом >= 400.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Handler — интерфейс внешнего исполнителя шага.
//
// Каждый тип handler'а (exec, clean, compress, githooks, http, delay, log)
// реализует этот интерфейс. Runner не заглядывает в опции шага:
// они передаются handler'у как есть.
type Handler interface {
	// Type возвращает тип handler'а.
	Type() string

	// Execute выполняет шаг. Ненулевая ошибка означает неудачу шага,
	// её текст показывается пользователю.
	// Handler должен проверять ctx.Done() для отмены.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Environment — окружение запуска, общее для всех шагов run.
// Только для чтения во время выполнения.
type Environment struct {
	// WorkDir — рабочая директория проекта. Пусто — текущая.
	WorkDir string

	// Options — параметры запуска (--key=value).
	Options map[string]string

	// Pkg — манифест проекта (package.json).
	Pkg map[string]any

	// Vars — переменные окружения, доступные шаблонам как .Env.
	Vars map[string]string

	// Stdout, Stderr — куда handler'ы пишут вывод внешних инструментов.
	Stdout io.Writer
	Stderr io.Writer

	// Logger — логгер для handler'ов.
	Logger *slog.Logger
}

// NewEnvironment создаёт окружение с параметрами запуска.
// Переменные окружения процесса копируются в Vars.
func NewEnvironment(options map[string]string) *Environment {
	if options == nil {
		options = make(map[string]string)
	}
	return &Environment{
		Options: options,
		Pkg:     make(map[string]any),
		Vars:    environMap(os.Environ()),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Logger:  slog.Default(),
	}
}

// Option возвращает параметр запуска.
func (e *Environment) Option(key string) string {
	if e == nil {
		return ""
	}
	return e.Options[key]
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Step — имя конкретного шага ("sass:dist").
	Step string

	// Task — задача, в рамках которой выполняется шаг.
	Task string

	// RunID — идентификатор run.
	RunID string

	// Options — опции шага из конфигурации (до рендеринга шаблонов).
	Options map[string]any

	// Env — окружение запуска.
	Env *Environment
}

// NewRequest создаёт новый Request.
func NewRequest(step string, options map[string]any, env *Environment) *Request {
	if options == nil {
		options = make(map[string]any)
	}
	if env == nil {
		env = NewEnvironment(nil)
	}
	return &Request{
		Step:    step,
		Options: options,
		Env:     env,
	}
}

// TemplateContext строит контекст для рендеринга опций.
func (r *Request) TemplateContext() *engine.Context {
	ctx := engine.NewContext(r.Task)
	ctx.RunID = r.RunID
	if r.Env != nil {
		maps.Copy(ctx.Pkg, r.Env.Pkg)
		maps.Copy(ctx.Options, r.Env.Options)
		maps.Copy(ctx.Env, r.Env.Vars)
	}
	return ctx
}

// RenderOptions возвращает опции шага с отрендеренными шаблонами.
func (r *Request) RenderOptions() (map[string]any, error) {
	return engine.RenderConfig(r.Options, r.TemplateContext())
}

// Logger возвращает логгер окружения с атрибутом step.
func (r *Request) Logger() *slog.Logger {
	logger := slog.Default()
	if r.Env != nil && r.Env.Logger != nil {
		logger = r.Env.Logger
	}
	return logger.With("step", r.Step)
}

// stdout возвращает writer для вывода внешних инструментов.
func (r *Request) stdout() io.Writer {
	if r.Env != nil && r.Env.Stdout != nil {
		return r.Env.Stdout
	}
	return io.Discard
}

// stderr возвращает writer для ошибок внешних инструментов.
func (r *Request) stderr() io.Writer {
	if r.Env != nil && r.Env.Stderr != nil {
		return r.Env.Stderr
	}
	return io.Discard
}

// workDir возвращает рабочую директорию окружения.
func (r *Request) workDir() string {
	if r.Env != nil {
		return r.Env.WorkDir
	}
	return ""
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — выходные данные шага, попадают в историю run.
	Outputs map[string]any
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}
