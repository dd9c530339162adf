package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

const (
	// StepTypeExec — тип шага запуска внешней команды.
	StepTypeExec = "exec"

	// waitDelay — сколько ждать завершения процесса после сигнала отмены.
	waitDelay = 5 * time.Second
)

// Ключи конфигурации exec.
const (
	configCommand = "command"
	configArgs    = "args"
	configDir     = "dir"
	configEnv     = "env"
	configShell   = "shell"
)

// ExecStep — шаг запуска внешнего инструмента.
//
// Через него вызываются минификаторы, линтеры, компиляторы Sass,
// тест-раннеры и публикация релизов: сам conveyor их не реализует.
//
// Конфигурация:
//
//	{
//	    "command": "uglifyjs",
//	    "args": ["src/app.js", "-o", "dest/build/{{ .Pkg.name }}.min.js"],
//	    "dir": "frontend",                  // относительно рабочей директории
//	    "env": {"NODE_ENV": "production"},
//	    "shell": false,                     // true — команда выполняется через sh -c
//	    "timeout_sec": 300
//	}
//
// Outputs:
//
//	{"exit_code": 0, "duration_ms": 1234}
type ExecStep struct{}

// NewExecStep создаёт новый ExecStep.
func NewExecStep() *ExecStep {
	return &ExecStep{}
}

// Type возвращает тип шага.
func (s *ExecStep) Type() string {
	return StepTypeExec
}

// Execute запускает команду и ждёт её завершения.
func (s *ExecStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeExec, err)
	}

	command := GetConfigString(options, configCommand)
	if command == "" {
		return nil, fmt.Errorf("%w: %s: command is required", ErrInvalidConfig, StepTypeExec)
	}
	args := GetConfigStrings(options, configArgs)

	// Таймаут — ответственность handler'а, не runner'а
	if timeout := GetConfigTimeout(options); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := s.buildCommand(ctx, command, args, GetConfigBool(options, configShell, false))
	cmd.Dir = resolveDir(req.workDir(), GetConfigString(options, configDir))
	cmd.Env = mergeEnv(os.Environ(), GetConfigMapString(options, configEnv))
	cmd.Stdout = req.stdout()
	cmd.Stderr = req.stderr()

	// Сначала просим процесс завершиться сам, затем WaitDelay убьёт его
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = waitDelay

	logger := req.Logger()
	logger.Debug("starting command", "command", command, "args", args, "dir", cmd.Dir)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	outputs := map[string]any{
		"exit_code":   exitCode(cmd),
		"duration_ms": elapsed.Milliseconds(),
	}

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return NewResponse(outputs), fmt.Errorf("%w: %s after %s", ErrStepTimeout, command, elapsed.Round(time.Millisecond))
		case errors.Is(ctx.Err(), context.Canceled):
			return NewResponse(outputs), fmt.Errorf("%w: %s: %v", ErrStepCancelled, command, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return NewResponse(outputs), fmt.Errorf("%w: %s exited with code %d", ErrCommandFailed, command, exitErr.ExitCode())
		}
		return NewResponse(outputs), fmt.Errorf("%w: %s: %v", ErrCommandFailed, command, err)
	}

	logger.Debug("command finished", "command", command, "duration", elapsed)
	return NewResponse(outputs), nil
}

// buildCommand создаёт exec.Cmd, при shell=true — через системную оболочку.
func (s *ExecStep) buildCommand(ctx context.Context, command string, args []string, shell bool) *exec.Cmd {
	if !shell {
		return exec.CommandContext(ctx, command, args...)
	}

	line := command
	for _, a := range args {
		line += " " + a
	}
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}

// exitCode возвращает код завершения процесса или -1, если процесс не запускался.
func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// resolveDir вычисляет директорию запуска.
func resolveDir(workDir, dir string) string {
	if dir == "" {
		return workDir
	}
	if filepath.IsAbs(dir) || workDir == "" {
		return dir
	}
	return filepath.Join(workDir, dir)
}

// mergeEnv добавляет extra к окружению процесса. Порядок ключей стабилен.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
