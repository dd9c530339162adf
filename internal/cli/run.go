package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/runner"
)

// newRunCmd создаёт команду run.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [task...] [--key=value ...]",
		Short: "Run tasks in order",
		Long: `Run one or more tasks. Steps run strictly one after another;
the first failing step stops the run and the remaining steps and tasks are skipped.

Options --key=value are available to step templates as {{ .Options.key }}.
A bare --key means "true", --no-key means "false". Without a task "default" runs.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ra, err := parseRunArgs(args)
			if err != nil {
				return err
			}
			if ra.Help {
				return cmd.Help()
			}
			if ra.Config != "" {
				app.ConfigPath = ra.Config
			}
			if ra.JSON {
				app.JSON = true
			}
			return app.runTasks(cmd.Context(), ra.Tasks, ra.Options)
		},
	}
}

// runTasks выполняет задачи по очереди. Все задачи разрешаются
// до запуска первого шага.
func (a *App) runTasks(ctx context.Context, tasks []string, options map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := a.Project()
	if err != nil {
		return err
	}

	logger := a.Logger()
	inf := a.openInfra(ctx, logger)
	defer inf.Close()

	r := runner.New(runner.Config{
		Tasks:     project.Tasks,
		Handlers:  project.Catalog,
		Observers: inf.observers(),
		Logger:    logger,
	})
	env := a.environment(project, options)

	runs := make([]*domain.Run, 0, len(tasks))
	for _, task := range tasks {
		run, err := r.Prepare(task, env)
		if err != nil {
			return err
		}
		run.Trigger = "cli"
		runs = append(runs, run)
	}

	out := a.Output()
	var runErr error
	for _, run := range runs {
		if runErr = r.Execute(ctx, run, env); runErr != nil {
			break
		}
		if !out.JSONMode() {
			out.Success(fmt.Sprintf("Done: %s (%d steps, %s)", run.Task, len(run.Steps), run.Duration().Round(time.Millisecond)))
		}
	}

	if out.JSONMode() {
		out.JSON(runs)
	}
	return runErr
}

// PrintError выводит ошибку команды в w. Для упавшего шага
// выводятся его имя и сообщение handler'а.
func PrintError(w io.Writer, err error) {
	if stepErr, ok := runner.IsStepExecutionError(err); ok {
		fmt.Fprintf(w, "Step %s failed: %v\n", strconv.Quote(stepErr.Step), stepErr.Err)
		if errors.Is(err, runner.ErrRunCancelled) {
			fmt.Fprintln(w, "Aborted: run cancelled.")
		} else {
			fmt.Fprintf(w, "Aborted: task %q failed.\n", stepErr.Task)
		}
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
