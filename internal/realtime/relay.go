package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/rabbitmq"
)

// Broker is the subset of the RabbitMQ client used by the relay
type Broker interface {
	DeclareExchange(name, kind string) error
	DeclareExclusiveQueue() (string, error)
	BindQueue(queue, routingKey, exchange string) error
	Consume(ctx context.Context, queue, consumerTag string) (<-chan rabbitmq.Message, error)
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

type envelope struct {
	UserID         string  `json:"user_id"`
	OrganizationID string  `json:"organization_id"`
	Payload        Payload `json:"payload"`
}

// Relay publishes pushes to a fanout exchange so every instance delivers to
// the sockets it holds
type Relay struct {
	broker   Broker
	exchange string
	hub      *Hub
	log      *logger.Logger
}

// NewRelay declares the fanout exchange and returns a relay delivering into hub
func NewRelay(broker Broker, exchange string, hub *Hub, log *logger.Logger) (*Relay, error) {
	if err := broker.DeclareExchange(exchange, "fanout"); err != nil {
		return nil, fmt.Errorf("declaring realtime exchange: %w", err)
	}
	return &Relay{broker: broker, exchange: exchange, hub: hub, log: log}, nil
}

// Push publishes payload for (userID, orgID) to all instances
func (r *Relay) Push(ctx context.Context, userID, orgID string, payload Payload) error {
	body, err := json.Marshal(envelope{UserID: userID, OrganizationID: orgID, Payload: payload})
	if err != nil {
		return err
	}
	return r.broker.Publish(ctx, r.exchange, "", body)
}

// Run consumes the instance's exclusive queue until ctx is done
func (r *Relay) Run(ctx context.Context) error {
	queue, err := r.broker.DeclareExclusiveQueue()
	if err != nil {
		return fmt.Errorf("declaring relay queue: %w", err)
	}
	if err := r.broker.BindQueue(queue, "", r.exchange); err != nil {
		return fmt.Errorf("binding relay queue: %w", err)
	}
	msgs, err := r.broker.Consume(ctx, queue, "")
	if err != nil {
		return fmt.Errorf("consuming relay queue: %w", err)
	}

	r.log.Info("Realtime relay started", "exchange", r.exchange, "queue", queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, msg rabbitmq.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		r.log.Warn("Dropping malformed relay message", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if err := r.hub.Push(ctx, env.UserID, env.OrganizationID, env.Payload); err != nil && !errors.Is(err, ErrNotConnected) {
		r.log.Warn("Relay push failed", "user_id", env.UserID, "tenant_id", env.OrganizationID, "error", err)
	}
	_ = msg.Ack(false)
}
