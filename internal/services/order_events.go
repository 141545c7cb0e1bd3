package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// Order event names
const (
	EventOrderConfirmedUnpaid = "order.confirmed_unpaid"
	EventOrderPaid            = "order.paid"
	EventOrderCancelled       = "order.cancelled"
	EventOrderExpired         = "order.expired"
)

// OrderEvent is published after an order transition commits
type OrderEvent struct {
	Event         string             `json:"event"`
	OrderID       uuid.UUID          `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	UserID        uuid.UUID          `json:"user_id"`
	TrainNo       string             `json:"train_no"`
	DepartureDate string             `json:"departure_date"`
	Status        models.OrderStatus `json:"status"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func newOrderEvent(event string, order *models.Order, status models.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		Event:         event,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		TrainNo:       order.TrainNo,
		DepartureDate: order.DepartureDate,
		Status:        status,
		OccurredAt:    at,
	}
}

// OrderEventPublisher delivers order events to downstream consumers
// (notifications, ticket printing)
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// NoopEventPublisher drops every event
type NoopEventPublisher struct{}

// PublishOrderEvent implements OrderEventPublisher
func (NoopEventPublisher) PublishOrderEvent(context.Context, OrderEvent) error {
	return nil
}

// publishAfterCommit never fails the caller; the transition is already durable
func publishAfterCommit(ctx context.Context, publisher OrderEventPublisher, logger *logrus.Logger, event OrderEvent) {
	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"event":    event.Event,
			"order_id": event.OrderID,
		}).Warn("Failed to publish order event")
	}
}

// ============================================================================
// AMQP PUBLISHER
// ============================================================================

// AMQPEventPublisher publishes order events to a durable RabbitMQ queue
type AMQPEventPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

// NewAMQPEventPublisher dials RabbitMQ and declares the event queue
func NewAMQPEventPublisher(url, queue string) (*AMQPEventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPEventPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// PublishOrderEvent implements OrderEventPublisher
func (p *AMQPEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Type:         event.Event,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Event, err)
	}
	return nil
}

// Close closes the channel and connection
func (p *AMQPEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
