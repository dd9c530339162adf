package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/mq"
)

// newTriggerCmd создаёт команду trigger: запрос на запуск задачи
// через RabbitMQ. Задачу выполнит conveyor serve.
func newTriggerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:                "trigger TASK [--key=value ...]",
		Short:              "Request a run from conveyor serve via RabbitMQ",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ra, err := parseRunArgs(args)
			if err != nil {
				return err
			}
			if ra.Help {
				return cmd.Help()
			}
			if ra.JSON {
				app.JSON = true
			}
			if len(ra.Tasks) != 1 {
				return fmt.Errorf("trigger accepts exactly one task, got %d", len(ra.Tasks))
			}
			if !mq.Enabled() {
				return errors.New("trigger requires RABBITMQ_URL")
			}

			logger := app.Logger()
			conn, err := mq.NewConnection(mq.URL(), logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(cmd.Context(), conn); err != nil {
				return err
			}

			id, err := mq.NewPublisher(conn, logger).PublishRunRequest(cmd.Context(), mq.RunRequestPayload{
				Task:        ra.Tasks[0],
				Options:     ra.Options,
				RequestedBy: requester(),
			})
			if err != nil {
				return err
			}

			out := app.Output()
			if out.JSONMode() {
				out.JSON(map[string]string{"message_id": id, "task": ra.Tasks[0]})
				return nil
			}
			out.Success(fmt.Sprintf("Run requested: %s (message %s)", ra.Tasks[0], id))
			return nil
		},
	}
}

// requester — кто запросил запуск: пользователь или хост.
func requester() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	host, _ := os.Hostname()
	return host
}
