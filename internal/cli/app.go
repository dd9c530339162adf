package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/config"
	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/runner"
	"github.com/shaiso/conveyor/internal/steps"
	"github.com/shaiso/conveyor/internal/telemetry"
)

// App — общее состояние команд: глобальные флаги, вывод, логгер.
type App struct {
	// ConfigPath — путь из --config. Пусто — CONVEYOR_CONFIG или conveyor.yaml.
	ConfigPath string

	// JSON — вывод данных в JSON.
	JSON bool

	// APIURL — адрес serve для команд remote.
	APIURL string

	Stdout io.Writer
	Stderr io.Writer

	// Handlers — типы шагов. nil — steps.DefaultRegistry().
	Handlers *steps.Registry

	logger *slog.Logger
}

// NewRootCmd создаёт корневую команду conveyor.
func NewRootCmd(version string) *cobra.Command {
	app := &App{Stdout: os.Stdout, Stderr: os.Stderr}
	return app.Command(version)
}

// Command собирает дерево команд.
func (a *App) Command(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor — declarative build pipeline runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	// Текущие значения App становятся значениями флагов по умолчанию
	root.PersistentFlags().StringVar(&a.ConfigPath, "config", a.ConfigPath, "Config file (default: $CONVEYOR_CONFIG or conveyor.yaml)")
	root.PersistentFlags().BoolVar(&a.JSON, "json", a.JSON, "Output in JSON format")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newCheckCmd(a),
		newSchedulesCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newTriggerCmd(a),
		NewRemoteCmd(func() *Client { return NewClient(a.APIURL) }, a.Output, &a.APIURL),
	)

	return root
}

// Output создаёт Output по флагу --json.
func (a *App) Output() *Output {
	return NewOutputTo(a.JSON, a.Stdout, a.Stderr)
}

// Logger возвращает логгер CLI (текст в stderr).
func (a *App) Logger() *slog.Logger {
	if a.logger == nil {
		a.logger = telemetry.SetupCLILogger(a.Stderr)
	}
	return a.logger
}

// Project загружает конфигурацию.
func (a *App) Project() (*config.Project, error) {
	return config.Open(config.Path(a.ConfigPath), a.Handlers)
}

// environment создаёт окружение запуска с выводом CLI.
func (a *App) environment(p *config.Project, options map[string]string) *steps.Environment {
	env := p.Environment(options)
	env.Stdout = a.Stdout
	env.Stderr = a.Stderr
	env.Logger = a.Logger()
	return env
}

// infra — необязательная инфраструктура: история в PostgreSQL
// и события в RabbitMQ.
type infra struct {
	pool      *pgxpool.Pool
	runs      *repo.RunRepo
	conn      *mq.Connection
	publisher *mq.Publisher
}

// openInfra подключает то, что настроено через DB_URL и RABBITMQ_URL.
// Недоступный сервис — предупреждение, не ошибка.
func (a *App) openInfra(ctx context.Context, logger *slog.Logger) *infra {
	inf := &infra{}

	if repo.Enabled() {
		pool, err := repo.NewPool(ctx)
		switch {
		case err != nil:
			logger.Warn("run history disabled: database unavailable", "error", err)
		default:
			if err := repo.Migrate(ctx, pool); err != nil {
				logger.Warn("run history disabled: migration failed", "error", err)
				pool.Close()
				break
			}
			inf.pool = pool
			inf.runs = repo.NewRunRepo(pool)
		}
	}

	if mq.Enabled() {
		conn, err := mq.NewConnection(mq.URL(), logger)
		switch {
		case err != nil:
			logger.Warn("run events disabled: rabbitmq unavailable", "error", err)
		default:
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("run events disabled: topology setup failed", "error", err)
				conn.Close()
				break
			}
			inf.conn = conn
			inf.publisher = mq.NewPublisher(conn, logger)
		}
	}

	return inf
}

// observers возвращает наблюдателей для подключённой инфраструктуры.
func (i *infra) observers() []runner.Observer {
	var obs []runner.Observer
	if i.runs != nil {
		obs = append(obs, repo.NewRecorder(i.runs))
	}
	if i.publisher != nil {
		obs = append(obs, mq.NewEventObserver(i.publisher))
	}
	return obs
}

// Close закрывает соединения.
func (i *infra) Close() {
	if i.conn != nil {
		i.conn.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
}
