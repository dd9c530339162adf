package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StepTypeClean — тип шага удаления файлов.
	StepTypeClean = "clean"

	configPaths = "paths"
)

// CleanStep — удаляет файлы и директории.
//
// Конфигурация:
//
//	{
//	    "paths": ["dest/", "test/report/", "build.zip"],  // поддерживаются glob-шаблоны
//	    "force": false                                    // разрешить пути вне рабочей директории
//	}
//
// Отсутствующие пути не считаются ошибкой. Сама рабочая директория
// не удаляется никогда, пути вне неё только с force.
//
// Outputs:
//
//	{"removed": ["dest", "build.zip"]}
type CleanStep struct{}

// NewCleanStep создаёт новый CleanStep.
func NewCleanStep() *CleanStep {
	return &CleanStep{}
}

// Type возвращает тип шага.
func (s *CleanStep) Type() string {
	return StepTypeClean
}

// Execute удаляет пути, совпавшие с шаблонами.
func (s *CleanStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeClean, err)
	}

	patterns := GetConfigStrings(options, configPaths)
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%w: %s: paths is required", ErrInvalidConfig, StepTypeClean)
	}

	root := req.workDir()
	force := GetConfigBool(options, "force", false)

	// Все совпадения проверяются до первого удаления
	var targets []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(resolveDir(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad pattern %q: %v", ErrInvalidConfig, StepTypeClean, pattern, err)
		}
		for _, path := range matches {
			if err := guardRoot(root, path, force); err != nil {
				return nil, err
			}
		}
		targets = append(targets, matches...)
	}

	removed := make([]string, 0, len(targets))
	for _, path := range targets {
		if err := ctx.Err(); err != nil {
			return NewResponse(map[string]any{"removed": removed}), fmt.Errorf("%w: %v", ErrStepCancelled, err)
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, relativeTo(root, path))
	}

	req.Logger().Info("cleaned", "removed", len(removed))
	return NewResponse(map[string]any{"removed": removed}), nil
}

// guardRoot запрещает удалять рабочую директорию, а без force
// и всё, что лежит вне неё.
func guardRoot(root, path string, force bool) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if absRoot == absPath {
		return fmt.Errorf("%w: %s: refusing to remove working directory %s", ErrInvalidConfig, StepTypeClean, absRoot)
	}
	if force {
		return nil
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s: refusing to remove %s outside working directory (set force: true)", ErrInvalidConfig, StepTypeClean, absPath)
	}
	return nil
}

// relativeTo возвращает путь относительно root, если это возможно.
func relativeTo(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
