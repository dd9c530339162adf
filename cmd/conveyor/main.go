// Conveyor — декларативный запуск сборочных конвейеров.
//
// Использование:
//
//	conveyor [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run        Выполнить задачи (по умолчанию "default")
//	list       Задачи и их шаги
//	check      Проверить конфигурацию
//	schedules  Расписания и время следующего запуска
//	serve      HTTP API, расписания, запросы из RabbitMQ
//	history    История run'ов (DB_URL)
//	trigger    Запросить запуск через RabbitMQ (RABBITMQ_URL)
//	remote     Клиент API serve
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// Ctrl+C отменяет текущий шаг, оставшиеся не запускаются
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		cli.PrintError(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
