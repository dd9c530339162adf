package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/scheduler"
)

// newSchedulesCmd создаёт команду schedules: расписания из конфигурации
// и время их следующего запуска.
func newSchedulesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List schedules and their next run time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := app.Project()
			if err != nil {
				return err
			}

			sched, err := scheduler.New(scheduler.Config{
				Schedules: project.Schedules,
				Logger:    app.Logger(),
			}, time.Now())
			if err != nil {
				return err
			}

			schedules := sched.Schedules()
			headers := []string{"NAME", "TASK", "CRON", "INTERVAL", "TIMEZONE", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				interval := ""
				if s.IntervalSec > 0 {
					interval = (time.Duration(s.IntervalSec) * time.Second).String()
				}
				next := "-"
				if s.Enabled {
					next = formatTime(s.NextDueAt)
				}
				rows[i] = []string{
					s.Name, s.Task, s.CronExpr, interval, s.Timezone,
					strconv.FormatBool(s.Enabled), next,
				}
			}

			app.Output().Print(headers, rows, schedules)
			return nil
		},
	}
}
