package cli

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/repo"
)

// errHistoryDisabled — история без DB_URL недоступна.
var errHistoryDisabled = errors.New("run history requires DB_URL")

// newHistoryCmd создаёт команду history.
func newHistoryCmd(app *App) *cobra.Command {
	var filter repo.RunFilter
	var status string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !repo.Enabled() {
				return errHistoryDisabled
			}
			pool, err := repo.NewPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			filter.Status = domain.RunStatus(status)
			runs, err := repo.NewRunRepo(pool).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			printRuns(app.Output(), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Task, "task", "", "Filter by task")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of results (default 20)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip the first N results")

	cmd.AddCommand(newHistoryShowCmd(app))

	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			if !repo.Enabled() {
				return errHistoryDisabled
			}
			pool, err := repo.NewPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			run, err := repo.NewRunRepo(pool).GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			printRunSteps(app.Output(), run)
			return nil
		},
	}
}

// printRuns выводит список run'ов.
func printRuns(out *Output, runs []domain.Run) {
	headers := []string{"ID", "TASK", "STATUS", "TRIGGER", "STARTED", "DURATION", "FAILED_STEP"}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID.String(), r.Task, string(r.Status), r.Trigger,
			formatTime(r.StartedAt), r.Duration().String(), r.FailedStep,
		}
	}
	out.Print(headers, rows, runs)
}

// printRunSteps выводит шаги run.
func printRunSteps(out *Output, run *domain.Run) {
	if out.JSONMode() {
		out.JSON(run)
		return
	}

	out.Success(run.ID.String() + " " + run.Task + " " + string(run.Status))
	headers := []string{"#", "STEP", "TYPE", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, len(run.Steps))
	for i, s := range run.Steps {
		rows[i] = []string{
			strconv.Itoa(s.Index), s.Name, s.Type, string(s.Status), s.Duration().String(), s.Error,
		}
	}
	out.Table(headers, rows)
}
