package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"
)

// Context — данные, доступные шаблонам в опциях шага:
//
//	{{ .Task }}, {{ .RunID }}
//	{{ .Pkg.name }}        поля package.json
//	{{ .Options.tag }}     параметры запуска --tag=v1.0.0
//	{{ .Env.GH_TOKEN }}    переменные окружения
type Context struct {
	Task    string            `json:"task"`
	RunID   string            `json:"run_id"`
	Pkg     map[string]any    `json:"pkg"`
	Options map[string]string `json:"options"`
	Env     map[string]string `json:"env"`
}

// NewContext создаёт контекст с пустыми map.
func NewContext(task string) *Context {
	return &Context{
		Task:    task,
		Pkg:     make(map[string]any),
		Options: make(map[string]string),
		Env:     make(map[string]string),
	}
}

var funcs = template.FuncMap{
	"default":   defaultValue,
	"json":      toJSON,
	"today":     today,
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
}

// defaultValue возвращает def, если val пустой.
// Порядок аргументов позволяет писать {{ .Options.title | default .Pkg.version }}.
func defaultValue(def, val any) any {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && s == "" {
		return def
	}
	return val
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// today форматирует текущую дату по layout Go ("2006-01-02").
func today(layout string) string {
	return time.Now().Format(layout)
}

// parsed — кэш разобранных шаблонов. Одни и те же опции
// рендерятся в каждом run.
var parsed sync.Map

func lookupTemplate(text string) (*template.Template, error) {
	if t, ok := parsed.Load(text); ok {
		return t.(*template.Template), nil
	}

	// Отсутствующий параметр запуска рендерится пустой строкой
	t, err := template.New("option").Option("missingkey=zero").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	actual, _ := parsed.LoadOrStore(text, t)
	return actual.(*template.Template), nil
}

// Render рендерит строку. Строка без "{{" возвращается как есть.
func Render(text string, ctx *Context) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	t, err := lookupTemplate(text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := t.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	// missingkey=zero для map[string]any даёт "<no value>"
	return strings.ReplaceAll(sb.String(), "<no value>", ""), nil
}

// RenderValue рендерит строки внутри значения, обходя map и slice.
// Числа и bool возвращаются без изменений. Вход не изменяется.
func RenderValue(value any, ctx *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := RenderValue(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := RenderValue(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil

	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			r, err := Render(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil

	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			r, err := Render(item, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}
	return value, nil
}

// RenderConfig рендерит опции шага.
func RenderConfig(config map[string]any, ctx *Context) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}
	rendered, err := RenderValue(config, ctx)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}
