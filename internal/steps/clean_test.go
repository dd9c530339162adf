package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCleanStep_Execute(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dest", "build", "app.min.js"), "x")
	writeFile(t, filepath.Join(root, "test", "report", "lcov.info"), "x")
	writeFile(t, filepath.Join(root, "build.zip"), "x")
	writeFile(t, filepath.Join(root, "src", "app.js"), "keep")

	env := NewEnvironment(nil)
	env.WorkDir = root

	req := NewRequest("clean", map[string]any{
		"paths": []any{"dest/", "test/report/", "*.zip", "missing/"},
	}, env)

	resp, err := NewCleanStep().Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range []string{"dest", "test/report", "build.zip"} {
		if _, err := os.Stat(filepath.Join(root, p)); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", p)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "src", "app.js")); err != nil {
		t.Error("src/app.js should be kept")
	}

	removed, ok := resp.Outputs["removed"].([]string)
	if !ok || len(removed) != 3 {
		t.Errorf("expected 3 removed paths, got %v", resp.Outputs["removed"])
	}
}

func TestCleanStep_SinglePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dest", "a.txt"), "x")

	env := NewEnvironment(nil)
	env.WorkDir = root

	req := NewRequest("clean:dest", map[string]any{"paths": "dest"}, env)
	if _, err := NewCleanStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dest")); !os.IsNotExist(err) {
		t.Error("dest should be removed")
	}
}

func TestCleanStep_InvalidConfig(t *testing.T) {
	_, err := NewCleanStep().Execute(context.Background(), NewRequest("clean", nil, nil))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCleanStep_RefusesWorkDir(t *testing.T) {
	root := t.TempDir()
	env := NewEnvironment(nil)
	env.WorkDir = root

	req := NewRequest("clean", map[string]any{"paths": []any{"."}}, env)
	_, err := NewCleanStep().Execute(context.Background(), req)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("working directory must survive")
	}
}

func TestCleanStep_OutsideWorkDir(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	writeFile(t, filepath.Join(root, "dest", "a.txt"), "x")
	outside := filepath.Join(parent, "precious.txt")

	tests := []struct {
		name  string
		paths []any
	}{
		{"relative", []any{"dest/", "../precious.txt"}},
		{"absolute", []any{outside}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, outside, "keep")
			env := NewEnvironment(nil)
			env.WorkDir = root

			req := NewRequest("clean", map[string]any{"paths": tt.paths}, env)
			_, err := NewCleanStep().Execute(context.Background(), req)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if _, err := os.Stat(outside); err != nil {
				t.Error("file outside working directory must survive")
			}
			if _, err := os.Stat(filepath.Join(root, "dest", "a.txt")); err != nil {
				t.Error("nothing should be removed when a path is refused")
			}
		})
	}
}

func TestCleanStep_OutsideWorkDirForced(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(parent, "stale.txt")
	writeFile(t, outside, "x")

	env := NewEnvironment(nil)
	env.WorkDir = root
	req := NewRequest("clean", map[string]any{"paths": []any{"../stale.txt"}, "force": true}, env)
	if _, err := NewCleanStep().Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Error("forced clean should remove the file")
	}
}

func TestCleanStep_ForceKeepsWorkDir(t *testing.T) {
	root := t.TempDir()
	env := NewEnvironment(nil)
	env.WorkDir = root

	req := NewRequest("clean", map[string]any{"paths": []any{"."}, "force": true}, env)
	if _, err := NewCleanStep().Execute(context.Background(), req); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
