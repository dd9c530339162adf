// Package mq связывает conveyor с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//   - events.go     — EventObserver: события run'ов для внешних подписчиков
//   - requests.go   — обработчик запросов на запуск задач
//
// Сообщения:
//   - run.started, step.finished, run.finished → conveyor.events (topic)
//   - run.request → conveyor.requests → runs.requests (потребитель: serve)
//
// RabbitMQ опционален и включается переменной RABBITMQ_URL.
package mq
