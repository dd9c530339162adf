package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// StepTypeGitHooks — тип шага установки git hooks.
	StepTypeGitHooks = "githooks"

	defaultHooksDir    = ".git/hooks"
	defaultHashbang    = "#!/bin/sh"
	defaultStartMarker = "## CONVEYOR START"
	defaultEndMarker   = "## CONVEYOR END"
	defaultHookCommand = "conveyor"
)

// GitHooksStep — привязывает задачи к git hooks.
//
// Конфигурация:
//
//	{
//	    "hooks": {"pre-commit": "test"},
//	    "hashbang": "#!/bin/sh",
//	    "template": "githook.tmpl",        // необязательно
//	    "start_marker": "## LET THE FUN BEGIN",
//	    "end_marker": "## PARTY IS OVER",
//	    "prevent_exit": false,
//	    "command": "conveyor",
//	    "dir": ".git/hooks"
//	}
//
// Содержимое hook-файла вне маркеров сохраняется. Блок между маркерами
// перезаписывается при каждом запуске.
//
// В template доступны подстановки {{hook}}, {{task}} и {{command}}.
//
// Outputs:
//
//	{"installed": ["pre-commit"]}
type GitHooksStep struct{}

// NewGitHooksStep создаёт новый GitHooksStep.
func NewGitHooksStep() *GitHooksStep {
	return &GitHooksStep{}
}

// Type возвращает тип шага.
func (s *GitHooksStep) Type() string {
	return StepTypeGitHooks
}

// hookConfig — распарсенная конфигурация githooks.
type hookConfig struct {
	Hooks       map[string]string
	Hashbang    string
	Template    string
	StartMarker string
	EndMarker   string
	PreventExit bool
	Command     string
	Dir         string
}

// Execute устанавливает hooks.
func (s *GitHooksStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeGitHooks, err)
	}

	cfg, err := s.parseConfig(options)
	if err != nil {
		return nil, err
	}

	root := req.workDir()
	dir := resolveDir(root, cfg.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create hooks dir: %w", err)
	}

	var tmpl string
	if cfg.Template != "" {
		data, err := os.ReadFile(resolveDir(root, cfg.Template))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: read template: %v", ErrInvalidConfig, StepTypeGitHooks, err)
		}
		tmpl = string(data)
	}

	hooks := make([]string, 0, len(cfg.Hooks))
	for hook := range cfg.Hooks {
		hooks = append(hooks, hook)
	}
	sort.Strings(hooks)

	for _, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, err)
		}

		block := s.renderBlock(cfg, tmpl, hook, cfg.Hooks[hook])
		path := filepath.Join(dir, hook)
		if err := installHook(path, cfg.Hashbang, cfg.StartMarker, cfg.EndMarker, block); err != nil {
			return nil, fmt.Errorf("install %s hook: %w", hook, err)
		}
		req.Logger().Info("git hook installed", "hook", hook, "task", cfg.Hooks[hook])
	}

	return NewResponse(map[string]any{"installed": hooks}), nil
}

// parseConfig парсит конфигурацию githooks.
func (s *GitHooksStep) parseConfig(options map[string]any) (*hookConfig, error) {
	cfg := &hookConfig{
		Hooks:       GetConfigMapString(options, "hooks"),
		Hashbang:    GetConfigString(options, "hashbang"),
		Template:    GetConfigString(options, "template"),
		StartMarker: GetConfigString(options, "start_marker"),
		EndMarker:   GetConfigString(options, "end_marker"),
		PreventExit: GetConfigBool(options, "prevent_exit", false),
		Command:     GetConfigString(options, "command"),
		Dir:         GetConfigString(options, "dir"),
	}

	if len(cfg.Hooks) == 0 {
		return nil, fmt.Errorf("%w: %s: hooks is required", ErrInvalidConfig, StepTypeGitHooks)
	}
	if cfg.Hashbang == "" {
		cfg.Hashbang = defaultHashbang
	}
	if cfg.StartMarker == "" {
		cfg.StartMarker = defaultStartMarker
	}
	if cfg.EndMarker == "" {
		cfg.EndMarker = defaultEndMarker
	}
	if cfg.Command == "" {
		cfg.Command = defaultHookCommand
	}
	if cfg.Dir == "" {
		cfg.Dir = defaultHooksDir
	}
	if cfg.StartMarker == cfg.EndMarker {
		return nil, fmt.Errorf("%w: %s: start and end markers must differ", ErrInvalidConfig, StepTypeGitHooks)
	}

	return cfg, nil
}

// renderBlock формирует содержимое между маркерами.
func (s *GitHooksStep) renderBlock(cfg *hookConfig, tmpl, hook, task string) string {
	if tmpl == "" {
		tmpl = "{{command}} run {{task}}\n"
		if !cfg.PreventExit {
			tmpl += "exit $?\n"
		}
	}
	r := strings.NewReplacer("{{hook}}", hook, "{{task}}", task, "{{command}}", cfg.Command)
	return strings.TrimRight(r.Replace(tmpl), "\n")
}

// installHook пишет блок в hook-файл, сохраняя чужое содержимое.
func installHook(path, hashbang, start, end, block string) error {
	section := start + "\n" + block + "\n" + end

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var content string
	switch {
	case len(existing) == 0:
		content = hashbang + "\n\n" + section + "\n"
	default:
		content = replaceSection(string(existing), start, end, section)
	}

	return os.WriteFile(path, []byte(content), 0o755)
}

// replaceSection заменяет блок между маркерами или дописывает его в конец.
func replaceSection(content, start, end, section string) string {
	i := strings.Index(content, start)
	if i >= 0 {
		if j := strings.Index(content[i:], end); j >= 0 {
			return content[:i] + section + content[i+j+len(end):]
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
