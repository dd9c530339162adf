package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/scheduler"
	"github.com/shaiso/conveyor/internal/steps"
)

// DefaultFile — имя файла конфигурации по умолчанию.
const DefaultFile = "conveyor.yaml"

// defaultPackage читается как .Pkg, если package не задан и файл существует.
const defaultPackage = "package.json"

// Project — загруженная конфигурация: задачи, привязки шагов, расписания.
// Загружается один раз, без перечитывания.
type Project struct {
	// Dir — рабочая директория проекта.
	Dir string

	// Pkg — манифест проекта.
	Pkg map[string]any

	// Options — параметры запуска по умолчанию.
	Options map[string]string

	Tasks     *engine.Registry
	Catalog   *steps.Catalog
	Schedules []domain.Schedule
}

// Path возвращает путь к конфигурации: явный, из CONVEYOR_CONFIG или по умолчанию.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("CONVEYOR_CONFIG"); env != "" {
		return env
	}
	return DefaultFile
}

// Open загружает и собирает проект из файла.
func Open(path string, handlers *steps.Registry) (*Project, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return Build(f, dir, handlers)
}

// Build собирает проект: привязывает шаги, регистрирует задачи
// и проверяет граф целиком.
//
// Шаг с targets даёт конкретный шаг "<шаг>:<цель>" на каждую цель
// (опции шага, поверх которых наложены опции цели) и неявную задачу
// "<шаг>", выполняющую все цели по порядку. Явная задача с тем же
// именем заменяет неявную.
func Build(f *File, dir string, handlers *steps.Registry) (*Project, error) {
	if handlers == nil {
		handlers = steps.DefaultRegistry()
	}

	policy, err := engine.ParsePolicy(f.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	workDir := dir
	if f.WorkDir != "" {
		workDir = resolvePath(dir, f.WorkDir)
	}

	p := &Project{
		Dir:     workDir,
		Options: maps.Clone(f.Options),
		Tasks:   engine.NewRegistry(policy),
		Catalog: steps.NewCatalog(handlers),
	}
	if p.Options == nil {
		p.Options = make(map[string]string)
	}

	implicit, err := p.bindSteps(f.Steps)
	if err != nil {
		return nil, err
	}
	if err := p.registerTasks(f.Tasks, implicit); err != nil {
		return nil, err
	}
	if err := p.Tasks.Validate(); err != nil {
		return nil, err
	}
	if err := p.buildSchedules(f.Schedules); err != nil {
		return nil, err
	}
	if p.Pkg, err = loadPackage(dir, f.Package); err != nil {
		return nil, err
	}

	return p, nil
}

// bindSteps привязывает шаги к handler'ам. Возвращает неявные задачи целей.
func (p *Project) bindSteps(list StepList) ([]engine.TaskDef, error) {
	var implicit []engine.TaskDef
	seen := make(map[string]bool)

	for _, sc := range list {
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: step %s defined twice", ErrInvalidConfig, sc.Name)
		}
		seen[sc.Name] = true

		if sc.Type == "" {
			return nil, fmt.Errorf("%w: step %s: type is required", ErrInvalidConfig, sc.Name)
		}
		if !p.Catalog.Handlers().Has(sc.Type) {
			return nil, fmt.Errorf("step %s: %w %q", sc.Name, ErrUnknownHandler, sc.Type)
		}

		if len(sc.Targets) == 0 {
			if err := p.Catalog.Bind(sc.Name, steps.Binding{Type: sc.Type, Options: sc.Options}); err != nil {
				return nil, err
			}
			continue
		}

		def := engine.TaskDef{
			Name:        sc.Name,
			Description: sc.Description,
		}
		if def.Description == "" {
			def.Description = fmt.Sprintf("all %s targets", sc.Name)
		}
		for _, t := range sc.Targets {
			name := sc.Name + ":" + t.Name
			options := steps.MergeOptions(sc.Options, t.Options)
			if err := p.Catalog.Bind(name, steps.Binding{Type: sc.Type, Options: options}); err != nil {
				return nil, err
			}
			def.Steps = append(def.Steps, engine.Step(name))
		}
		implicit = append(implicit, def)
	}

	return implicit, nil
}

// registerTasks регистрирует неявные и явные задачи в порядке файла.
func (p *Project) registerTasks(list TaskList, implicit []engine.TaskDef) error {
	isTask := make(map[string]bool, len(list)+len(implicit))
	explicit := make(map[string]bool, len(list))
	for _, tc := range list {
		isTask[tc.Name] = true
		explicit[tc.Name] = true
	}
	for _, def := range implicit {
		isTask[def.Name] = true
	}

	for _, def := range implicit {
		if explicit[def.Name] {
			continue
		}
		if err := p.Tasks.RegisterDef(def); err != nil {
			return err
		}
	}

	for _, tc := range list {
		refs := engine.Refs(tc.Steps, func(name string) bool { return isTask[name] })
		for _, ref := range refs {
			if !ref.IsTask() && !p.Catalog.Has(ref.Name) {
				return fmt.Errorf("task %s: %w %q", tc.Name, ErrUnboundStep, ref.Name)
			}
		}

		err := p.Tasks.RegisterDef(engine.TaskDef{
			Name:        tc.Name,
			Description: tc.Description,
			Steps:       refs,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// buildSchedules проверяет расписания.
func (p *Project) buildSchedules(list []ScheduleConfig) error {
	names := make(map[string]bool, len(list))

	for i, sc := range list {
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", sc.Task, i)
		}
		if names[name] {
			return fmt.Errorf("%w: schedule %s defined twice", ErrInvalidSchedule, name)
		}
		names[name] = true

		if sc.Cron != "" && sc.Every != "" {
			return fmt.Errorf("%w: schedule %s: cron and every are mutually exclusive", ErrInvalidSchedule, name)
		}

		sched := domain.Schedule{
			Name:     name,
			Task:     sc.Task,
			CronExpr: sc.Cron,
			Timezone: sc.Timezone,
			Enabled:  sc.Enabled == nil || *sc.Enabled,
			Options:  maps.Clone(sc.Options),
		}
		if sc.Every != "" {
			every, err := time.ParseDuration(sc.Every)
			if err != nil || every < time.Second {
				return fmt.Errorf("%w: schedule %s: bad interval %q", ErrInvalidSchedule, name, sc.Every)
			}
			sched.IntervalSec = int(every / time.Second)
		}

		if err := scheduler.Validate(&sched); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		if !p.Tasks.Has(sched.Task) {
			return fmt.Errorf("%w: schedule %s: unknown task %q", ErrInvalidSchedule, name, sched.Task)
		}

		p.Schedules = append(p.Schedules, sched)
	}
	return nil
}

// Environment создаёт окружение запуска проекта. options накладываются
// на параметры по умолчанию.
func (p *Project) Environment(options map[string]string) *steps.Environment {
	merged := maps.Clone(p.Options)
	if merged == nil {
		merged = make(map[string]string)
	}
	maps.Copy(merged, options)

	env := steps.NewEnvironment(merged)
	env.WorkDir = p.Dir
	maps.Copy(env.Pkg, p.Pkg)
	return env
}

// loadPackage читает манифест проекта. Отсутствие файла по умолчанию не ошибка.
func loadPackage(dir, name string) (map[string]any, error) {
	explicit := name != ""
	if !explicit {
		name = defaultPackage
	}

	data, err := os.ReadFile(resolvePath(dir, name))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("%w: read package: %v", ErrInvalidConfig, err)
	}

	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, name, err)
	}
	return pkg, nil
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
