package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/runner"
	"github.com/shaiso/conveyor/internal/steps"
)

// recordStep записывает вызовы. Непустая опция fail — ошибка шага.
type recordStep struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordStep) Type() string { return "record" }

func (s *recordStep) Execute(_ context.Context, req *steps.Request) (*steps.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Step)
	s.mu.Unlock()

	options, err := req.RenderOptions()
	if err != nil {
		return nil, err
	}
	if msg := steps.GetConfigString(options, "fail"); msg != "" {
		return nil, errors.New(msg)
	}
	return steps.NewResponse(map[string]any{"tag": steps.GetConfigString(options, "tag")}), nil
}

func (s *recordStep) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

const testConfig = `
steps:
  lint: {type: record}
  clean:
    type: record
    options: {fail: "{{ .Options.failclean }}"}
  build: {type: record}
  unitTest: {type: record}
  release:
    type: record
    options: {tag: "{{ .Options.tag }}"}
tasks:
  default: [lint]
  test: [lint, clean, build, unitTest]
`

type testApp struct {
	*App
	record *recordStep
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("DB_URL", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("LOG_FORMAT", "text")

	path := filepath.Join(t.TempDir(), "conveyor.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	record := &recordStep{}
	handlers := steps.NewRegistry()
	handlers.Register(record)

	ta := &testApp{record: record, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	ta.App = &App{
		ConfigPath: path,
		Stdout:     ta.stdout,
		Stderr:     ta.stderr,
		Handlers:   handlers,
	}
	return ta
}

func TestRunTasks_StopsAtFirstFailure(t *testing.T) {
	app := newTestApp(t)

	err := app.runTasks(context.Background(), []string{"test"}, map[string]string{"failclean": "rm: permission denied"})

	stepErr, ok := runner.IsStepExecutionError(err)
	if !ok {
		t.Fatalf("expected StepExecutionError, got %v", err)
	}
	if stepErr.Step != "clean" || stepErr.Err.Error() != "rm: permission denied" {
		t.Errorf("unexpected error: %+v", stepErr)
	}
	if got := strings.Join(app.record.Calls(), ","); got != "lint,clean" {
		t.Errorf("build and unitTest must not run, got %s", got)
	}

	var stderr bytes.Buffer
	PrintError(&stderr, err)
	if !strings.HasPrefix(stderr.String(), `Step "clean" failed: rm: permission denied`) {
		t.Errorf("unexpected error output: %q", stderr.String())
	}
}

func TestRunTasks_Success(t *testing.T) {
	app := newTestApp(t)

	if err := app.runTasks(context.Background(), []string{"test", "default"}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Join(app.record.Calls(), ","); got != "lint,clean,build,unitTest,lint" {
		t.Errorf("unexpected calls: %s", got)
	}
	if !strings.Contains(app.stderr.String(), "Done: test (4 steps") {
		t.Errorf("expected summary on stderr, got %q", app.stderr.String())
	}
}

func TestRunTasks_ResolvesAllBeforeRunning(t *testing.T) {
	app := newTestApp(t)

	err := app.runTasks(context.Background(), []string{"default", "nope"}, nil)
	if !errors.Is(err, engine.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if calls := app.record.Calls(); len(calls) != 0 {
		t.Errorf("no step may run before all tasks resolve, got %v", calls)
	}
}

func TestRunTasks_JSON(t *testing.T) {
	app := newTestApp(t)
	app.JSON = true

	if err := app.runTasks(context.Background(), []string{"default"}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	var runs []domain.Run
	if err := json.Unmarshal(app.stdout.Bytes(), &runs); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, app.stdout.String())
	}
	if len(runs) != 1 || runs[0].Status != domain.RunStatusSucceeded || runs[0].Trigger != "cli" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestRootCmd_Run(t *testing.T) {
	app := newTestApp(t)
	path := app.ConfigPath
	app.ConfigPath = ""

	cmd := app.Command("test")
	cmd.SetArgs([]string{"--config", path, "run", "test", "--failclean=boom"})

	err := cmd.ExecuteContext(context.Background())
	if stepErr, ok := runner.IsStepExecutionError(err); !ok || stepErr.Step != "clean" {
		t.Fatalf("expected clean to fail, got %v", err)
	}
}

func TestRootCmd_Release(t *testing.T) {
	app := newTestApp(t)

	cmd := app.Command("test")
	cmd.SetArgs([]string{"run", "release", "--tag=v1.0.0", "--json"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var runs []domain.Run
	if err := json.Unmarshal(app.stdout.Bytes(), &runs); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if got := runs[0].Steps[0].Outputs["tag"]; got != "v1.0.0" {
		t.Errorf("option should reach the step template, got %v", got)
	}
}

func TestRootCmd_ListAndCheck(t *testing.T) {
	app := newTestApp(t)

	cmd := app.Command("test")
	cmd.SetArgs([]string{"list", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list: %v", err)
	}

	var views []taskView
	if err := json.Unmarshal(app.stdout.Bytes(), &views); err != nil {
		t.Fatalf("list output is not JSON: %v", err)
	}
	if len(views) != 2 || views[1].Name != "test" || len(views[1].Plan) != 4 {
		t.Errorf("unexpected tasks: %+v", views)
	}

	app.stdout.Reset()
	app.JSON = false
	cmd = app.Command("test")
	cmd.SetArgs([]string{"check"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(app.stderr.String(), "OK: 2 tasks, 5 steps, 0 schedules") {
		t.Errorf("unexpected check output: %q", app.stderr.String())
	}
}

func TestRootCmd_CheckFails(t *testing.T) {
	app := newTestApp(t)
	if err := os.WriteFile(app.ConfigPath, []byte("tasks:\n  build: [uglify]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := app.Command("test")
	cmd.SetArgs([]string{"check"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected unbound step error")
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("read config: no such file"))
	if buf.String() != "Error: read config: no such file\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
