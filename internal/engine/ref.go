package engine

// RefKind — вид ссылки внутри задачи.
type RefKind int

const (
	// RefStep — конкретный шаг, выполняется внешним handler'ом.
	RefStep RefKind = iota

	// RefTask — ссылка на другую задачу, разворачивается рекурсивно.
	RefTask
)

// String возвращает строковое представление RefKind.
func (k RefKind) String() string {
	switch k {
	case RefStep:
		return "step"
	case RefTask:
		return "task"
	default:
		return "unknown"
	}
}

// StepRef — элемент последовательности задачи.
type StepRef struct {
	Kind RefKind
	Name string
}

// Step создаёт ссылку на конкретный шаг.
func Step(name string) StepRef {
	return StepRef{Kind: RefStep, Name: name}
}

// Task создаёт ссылку на другую задачу.
func Task(name string) StepRef {
	return StepRef{Kind: RefTask, Name: name}
}

// IsTask возвращает true для ссылки на задачу.
func (r StepRef) IsTask() bool {
	return r.Kind == RefTask
}

// String возвращает имя, для задач с префиксом "@".
func (r StepRef) String() string {
	if r.IsTask() {
		return "@" + r.Name
	}
	return r.Name
}

// Refs строит последовательность ссылок из имён.
// isTask определяет, какие имена являются задачами.
func Refs(names []string, isTask func(name string) bool) []StepRef {
	refs := make([]StepRef, len(names))
	for i, name := range names {
		if isTask != nil && isTask(name) {
			refs[i] = Task(name)
		} else {
			refs[i] = Step(name)
		}
	}
	return refs
}

// TaskDef — именованная последовательность шагов и ссылок на задачи.
type TaskDef struct {
	Name        string
	Description string
	Steps       []StepRef
}

// clone возвращает копию с собственным слайсом шагов.
func (d TaskDef) clone() *TaskDef {
	steps := make([]StepRef, len(d.Steps))
	copy(steps, d.Steps)
	return &TaskDef{
		Name:        d.Name,
		Description: d.Description,
		Steps:       steps,
	}
}

// TaskNames возвращает имена задач, на которые ссылается определение.
func (d *TaskDef) TaskNames() []string {
	var names []string
	for _, ref := range d.Steps {
		if ref.IsTask() {
			names = append(names, ref.Name)
		}
	}
	return names
}
