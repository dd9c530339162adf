package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRemoteCmd создаёт группу команд для работы с conveyor serve по HTTP.
func NewRemoteCmd(clientFn func() *Client, outputFn func() *Output, apiURL *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running conveyor serve over HTTP",
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("CONVEYOR_API_URL"); v != "" {
		defaultURL = v
	}
	cmd.PersistentFlags().StringVar(apiURL, "api-url", defaultURL, "API server URL (CONVEYOR_API_URL)")

	cmd.AddCommand(
		newRemoteTasksCmd(clientFn, outputFn),
		newRemoteTaskCmd(clientFn, outputFn),
		newRemoteStartCmd(clientFn, outputFn),
		newRemoteRunsCmd(clientFn, outputFn),
		newRemoteShowCmd(clientFn, outputFn),
		newRemoteSchedulesCmd(clientFn, outputFn),
	)

	return cmd
}

func newRemoteTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.Name, t.Description, strings.Join(t.Steps, " "), strconv.FormatBool(t.Running)}
			}
			outputFn().Print([]string{"TASK", "DESCRIPTION", "STEPS", "RUNNING"}, rows, tasks)
			return nil
		},
	}
}

func newRemoteTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "task NAME",
		Short: "Show a task and the steps it resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			task, err := clientFn().GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out.JSONMode() {
				out.JSON(task)
				return nil
			}

			out.Success(fmt.Sprintf("%s: %s", task.Name, strings.Join(task.Steps, " ")))
			rows := make([][]string, len(task.Plan))
			for i, step := range task.Plan {
				rows[i] = []string{strconv.Itoa(i + 1), step}
			}
			out.Table([]string{"#", "STEP"}, rows)
			return nil
		},
	}
}

func newRemoteStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var options []string

	cmd := &cobra.Command{
		Use:   "start TASK",
		Short: "Start a task on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			req := CreateRunRequest{}
			if len(options) > 0 {
				req.Options = make(map[string]string, len(options))
				for _, kv := range options {
					key, value, ok := strings.Cut(kv, "=")
					if !ok || key == "" {
						return fmt.Errorf("invalid option format %q, expected KEY=VALUE", kv)
					}
					req.Options[key] = value
				}
			}

			run, err := clientFn().StartRun(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(
				[]string{"ID", "TASK", "STATUS", "STEPS"},
				[][]string{{run.ID, run.Task, run.Status, strconv.Itoa(len(run.Plan))}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&options, "option", nil, "Run option as KEY=VALUE (repeatable)")

	return cmd
}

func newRemoteRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TASK", "STATUS", "TRIGGER", "FAILED_STEP", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.Task, r.Status, r.Trigger, r.FailedStep, r.CreatedAt}
			}

			outputFn().Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Task, "task", "", "Filter by task")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRemoteShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			run, err := clientFn().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out.JSONMode() {
				out.JSON(run)
				return nil
			}

			out.Success(fmt.Sprintf("%s %s %s %s", run.ID, run.Task, run.Status, run.Error))
			rows := make([][]string, len(run.Steps))
			for i, s := range run.Steps {
				rows[i] = []string{strconv.Itoa(s.Index), s.Name, s.Type, s.Status, strconv.FormatInt(s.DurationMs, 10) + "ms", s.Error}
			}
			out.Table([]string{"#", "STEP", "TYPE", "STATUS", "DURATION", "ERROR"}, rows)
			return nil
		},
	}
}

func newRemoteSchedulesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List schedules on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := clientFn().ListSchedules(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TASK", "CRON", "INTERVAL", "ENABLED", "NEXT_DUE", "LAST_RUN"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				interval := ""
				if s.IntervalSec > 0 {
					interval = strconv.Itoa(s.IntervalSec) + "s"
				}
				rows[i] = []string{
					s.Name, s.Task, s.CronExpr, interval,
					strconv.FormatBool(s.Enabled), s.NextDueAt, s.LastRunID,
				}
			}

			outputFn().Print(headers, rows, schedules)
			return nil
		},
	}
}
