package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// taskView — задача в выводе list.
type taskView struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
	Plan        []string `json:"plan"`
}

// newListCmd создаёт команду list.
func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks and their resolved steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := app.Project()
			if err != nil {
				return err
			}

			names := project.Tasks.Names()
			views := make([]taskView, 0, len(names))
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				def, err := project.Tasks.Get(name)
				if err != nil {
					return err
				}
				plan, err := project.Tasks.Resolve(name)
				if err != nil {
					return err
				}

				refs := make([]string, len(def.Steps))
				for i, ref := range def.Steps {
					refs[i] = ref.String()
				}
				views = append(views, taskView{
					Name:        name,
					Description: def.Description,
					Steps:       refs,
					Plan:        plan,
				})
				rows = append(rows, []string{name, def.Description, strings.Join(plan, " ")})
			}

			app.Output().Print([]string{"TASK", "DESCRIPTION", "STEPS"}, rows, views)
			return nil
		},
	}
}

// newCheckCmd создаёт команду check.
func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open проверяет привязки шагов, ссылки, циклы и расписания
			project, err := app.Project()
			if err != nil {
				return err
			}

			out := app.Output()
			summary := map[string]int{
				"tasks":     project.Tasks.Count(),
				"steps":     len(project.Catalog.Steps()),
				"schedules": len(project.Schedules),
			}
			if out.JSONMode() {
				out.JSON(summary)
				return nil
			}
			out.Success(fmt.Sprintf("OK: %d tasks, %d steps, %d schedules",
				summary["tasks"], summary["steps"], summary["schedules"]))
			return nil
		},
	}
}
