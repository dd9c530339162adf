package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPermanent — сообщение не будет обработано ни при какой повторной
// доставке. Такое сообщение уходит в DLQ.
var ErrPermanent = errors.New("permanent message failure")

// Handler обрабатывает одно сообщение.
//
// nil — ack. Ошибка с ErrPermanent — nack без возврата (DLQ).
// Любая другая ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — входящее сообщение. Payload разбирается лениво через Decode.
type Delivery struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode разбирает payload в v.
func (d *Delivery) Decode(v any) error {
	if len(d.Payload) == 0 {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", d.Type, err)
	}
	return nil
}

// Consumer читает очередь и передаёт сообщения Handler'у по одному.
// После разрыва соединения подписка восстанавливается автоматически.
type Consumer struct {
	conn     *Connection
	queue    Queue
	handler  Handler
	prefetch int
	logger   *slog.Logger
}

// ConsumerConfig — параметры Consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держит брокер.
	// По умолчанию 1: run'ы запускаются по одному запросу.
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
		logger:   logger.With("queue", string(cfg.Queue)),
	}
}

// Run читает очередь до отмены ctx. Возвращает ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	for {
		// Канал восстановления берётся до подписки, чтобы не пропустить
		// переподключение между ошибкой и ожиданием
		recovered := c.conn.Recovered()

		ch, deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
			ch.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("delivery stream closed, waiting for reconnect")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recovered:
		case <-time.After(maxReconnectDelay):
		}
	}
}

// subscribe открывает отдельный канал и подписывается на очередь.
func (c *Consumer) subscribe() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: подтверждение по результату Handler
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return ch, deliveries, nil
}

// drain обрабатывает сообщения, пока поток не закроется или ctx не отменят.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(raw, c.handle(ctx, raw.Body))
		}
	}
}

// handle разбирает конверт и вызывает Handler.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return fmt.Errorf("%w: bad envelope: %v", ErrPermanent, err)
	}

	c.logger.Debug("message received", "message_id", d.ID, "type", d.Type)
	return c.handler(ctx, &d)
}

// settle подтверждает или отклоняет сообщение по результату обработки.
func (c *Consumer) settle(raw amqp.Delivery, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = raw.Ack(false)
	case errors.Is(err, ErrPermanent):
		c.logger.Error("message rejected", "message_id", raw.MessageId, "error", err)
		ackErr = raw.Nack(false, false)
	default:
		c.logger.Warn("message requeued", "message_id", raw.MessageId, "error", err)
		ackErr = raw.Nack(false, true)
	}
	if ackErr != nil {
		c.logger.Warn("settle failed", "message_id", raw.MessageId, "error", ackErr)
	}
}
