package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeStepFinished MessageType = "step.finished"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeRunRequest   MessageType = "run.request"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunEventPayload — событие жизненного цикла run.
type RunEventPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	Task       string    `json:"task"`
	Status     string    `json:"status"`
	Trigger    string    `json:"trigger,omitempty"`
	Step       string    `json:"step,omitempty"`
	StepIndex  int       `json:"step_index,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// RunRequestPayload — запрос на запуск задачи.
type RunRequestPayload struct {
	Task        string            `json:"task"`
	Options     map[string]string `json:"options,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunEvent публикует событие run в conveyor.events.
// Routing key совпадает с типом события.
func (p *Publisher) PublishRunEvent(ctx context.Context, msgType MessageType, payload RunEventPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKey(msgType), NewMessage(msgType, payload))
}

// PublishRunRequest ставит запрос на запуск задачи в очередь runs.requests.
// Потребитель: conveyor serve.
func (p *Publisher) PublishRunRequest(ctx context.Context, payload RunRequestPayload) (string, error) {
	msg := NewMessage(MessageTypeRunRequest, payload)
	if err := p.Publish(ctx, ExchangeRequests, RoutingKeyRunRequest, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}
