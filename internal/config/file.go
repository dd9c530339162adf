package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// File — содержимое conveyor.yaml.
//
// Порядок шагов, целей и задач сохраняется таким, как в файле:
// от него зависят неявные задачи целей и порядок регистрации.
type File struct {
	// Package — путь к манифесту проекта (JSON), доступен шаблонам как .Pkg.
	Package string `yaml:"package"`

	// Policy — политика повторной регистрации задач: overwrite | reject.
	Policy string `yaml:"policy"`

	// WorkDir — рабочая директория относительно файла конфигурации.
	WorkDir string `yaml:"workdir"`

	// Options — параметры запуска по умолчанию, --key=value их переопределяют.
	Options map[string]string `yaml:"options"`

	Steps     StepList         `yaml:"steps"`
	Tasks     TaskList         `yaml:"tasks"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// StepConfig — шаг: тип handler'а, опции и необязательные цели.
type StepConfig struct {
	Name        string         `yaml:"-"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	Options     map[string]any `yaml:"options"`
	Targets     TargetList     `yaml:"targets"`
}

// TargetConfig — цель многоцелевого шага (sass:dist, sass:release).
type TargetConfig struct {
	Name    string
	Options map[string]any
}

// TaskConfig — задача: последовательность имён шагов и задач.
type TaskConfig struct {
	Name        string   `yaml:"-"`
	Description string   `yaml:"description"`
	Steps       []string `yaml:"steps"`
}

// ScheduleConfig — расписание запуска задачи в serve.
type ScheduleConfig struct {
	Name     string            `yaml:"name"`
	Task     string            `yaml:"task"`
	Cron     string            `yaml:"cron"`
	Every    string            `yaml:"every"`
	Timezone string            `yaml:"timezone"`
	Enabled  *bool             `yaml:"enabled"`
	Options  map[string]string `yaml:"options"`
}

// StepList — шаги в порядке объявления.
type StepList []StepConfig

// TargetList — цели в порядке объявления.
type TargetList []TargetConfig

// TaskList — задачи в порядке объявления.
type TaskList []TaskConfig

// Load читает и разбирает файл конфигурации.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML конфигурации. Неизвестные поля — ошибка.
func Parse(data []byte) (*File, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &f, nil
}

// UnmarshalYAML разбирает mapping имя → шаг с сохранением порядка.
func (l *StepList) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, "steps", func(name string, value *yaml.Node) error {
		if err := checkKeys(value, "step "+name, stepKeys); err != nil {
			return err
		}
		var sc StepConfig
		if err := value.Decode(&sc); err != nil {
			return fmt.Errorf("step %s: %w", name, err)
		}
		sc.Name = name
		*l = append(*l, sc)
		return nil
	})
}

// UnmarshalYAML разбирает mapping имя цели → опции.
func (l *TargetList) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, "targets", func(name string, value *yaml.Node) error {
		var options map[string]any
		if err := value.Decode(&options); err != nil {
			return fmt.Errorf("target %s: %w", name, err)
		}
		*l = append(*l, TargetConfig{Name: name, Options: options})
		return nil
	})
}

// UnmarshalYAML разбирает задачи. Значение — список шагов
// или mapping {description, steps}.
func (l *TaskList) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, "tasks", func(name string, value *yaml.Node) error {
		tc := TaskConfig{Name: name}
		switch value.Kind {
		case yaml.SequenceNode:
			if err := value.Decode(&tc.Steps); err != nil {
				return fmt.Errorf("task %s: %w", name, err)
			}
		case yaml.MappingNode:
			if err := checkKeys(value, "task "+name, taskKeys); err != nil {
				return err
			}
			if err := value.Decode(&tc); err != nil {
				return fmt.Errorf("task %s: %w", name, err)
			}
			tc.Name = name
		case yaml.ScalarNode:
			if value.Tag != "!!null" {
				return fmt.Errorf("task %s: line %d: expected a list of steps", name, value.Line)
			}
		default:
			return fmt.Errorf("task %s: line %d: expected a list of steps", name, value.Line)
		}
		*l = append(*l, tc)
		return nil
	})
}

// Node.Decode не наследует KnownFields декодера файла,
// поэтому ключи вложенных mapping проверяются вручную.
var (
	stepKeys = []string{"type", "description", "options", "targets"}
	taskKeys = []string{"description", "steps"}
)

// checkKeys отклоняет ключи mapping, которых нет в allowed.
func checkKeys(node *yaml.Node, what string, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("%s: line %d: unknown field %q", what, key.Line, key.Value)
		}
	}
	return nil
}

// eachPair обходит mapping в порядке ключей.
func eachPair(node *yaml.Node, what string, fn func(name string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", node.Line, what)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Value == "" {
			return fmt.Errorf("line %d: empty name in %s", key.Line, what)
		}
		if err := fn(key.Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
