package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/conveyor/internal/api"
	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/runner"
	"github.com/shaiso/conveyor/internal/scheduler"
	"github.com/shaiso/conveyor/internal/telemetry"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 10 * time.Second

	// leaderLockKey — ключ advisory lock лидера расписаний.
	leaderLockKey int64 = 0x636f6e76 // "conv"
)

// newServeCmd создаёт команду serve.
func newServeCmd(app *App) *cobra.Command {
	addr := defaultAddr
	if v := os.Getenv("CONVEYOR_ADDR"); v != "" {
		addr = v
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, schedules and queued run requests",
		Long: `Long-running mode. Serves /healthz, /metrics and /api/v1, runs tasks
on their schedules and, when RABBITMQ_URL is set, consumes run requests.

With DB_URL set runs are recorded to PostgreSQL and only the instance holding
the advisory lock runs schedules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", addr, "HTTP listen address (CONVEYOR_ADDR)")

	return cmd
}

// serve запускает долгоживущий режим и блокируется до отмены ctx.
func (a *App) serve(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Сервисный режим логирует как сервисы: JSON в stdout по умолчанию
	logger := telemetry.SetupLogger()
	a.logger = logger

	project, err := a.Project()
	if err != nil {
		return err
	}
	logger.Info("starting conveyor serve",
		"tasks", project.Tasks.Count(),
		"schedules", len(project.Schedules),
	)

	inf := a.openInfra(ctx, logger)
	defer inf.Close()

	metrics := telemetry.NewMetrics()
	observers := append([]runner.Observer{metrics}, inf.observers()...)

	r := runner.New(runner.Config{
		Tasks:     project.Tasks,
		Handlers:  project.Catalog,
		Observers: observers,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	dispatcher := runner.NewDispatcher(gctx, r, a.environment(project, nil))

	schedCfg := scheduler.Config{
		Schedules:  project.Schedules,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if inf.pool != nil {
		lock := repo.NewAdvisoryLock(inf.pool, leaderLockKey)
		defer lock.Release(context.Background())
		schedCfg.Leader = lock
	}
	sched, err := scheduler.New(schedCfg, time.Now())
	if err != nil {
		return err
	}

	apiCfg := api.Config{
		Tasks:      project.Tasks,
		Dispatcher: dispatcher,
		Schedules:  sched,
		Gatherer:   metrics.Registry(),
		Logger:     logger,
	}
	if inf.runs != nil {
		apiCfg.Runs = inf.runs
	}
	mux := http.NewServeMux()
	api.NewHandler(apiCfg).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sched.Start(gctx)
	})

	if inf.conn != nil {
		consumer := mq.NewConsumer(inf.conn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueRunRequests,
			Handler: mq.RunRequestHandler(dispatcher, logger),
		})
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()

	// Отменённые run'ы дописывают историю и метрики
	dispatcher.Wait()
	logger.Info("stopped")
	return err
}
