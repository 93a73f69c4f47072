package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/rabbitmq"
)

const consumerTag = "smart-notification-service"

// Routing key patterns bound on the events exchange
var routingKeys = []string{"task.*", "project.*", "decision.*", "handoff.*", "mention.*", "system.*"}

var errUnroutable = errors.New("no notification type for event")

// Broker is the subset of the RabbitMQ client the consumer needs
type Broker interface {
	DeclareExchange(name, kind string) error
	DeclareQueue(name string) error
	BindQueue(queue, routingKey, exchange string) error
	Consume(ctx context.Context, queue, consumerTag string) (<-chan rabbitmq.Message, error)
}

// Creator persists notifications through the normal creation path
type Creator interface {
	Create(ctx context.Context, orgID string, req *domain.CreateNotificationRequest) (*domain.Notification, error)
}

// EventConsumer turns platform events into notifications
type EventConsumer struct {
	broker   Broker
	creator  Creator
	exchange string
	queue    string
	log      *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(broker Broker, creator Creator, exchange, queue string, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		broker:   broker,
		creator:  creator,
		exchange: exchange,
		queue:    queue,
		log:      log,
	}
}

// Run declares the topology and processes events until ctx ends or the broker closes the stream
func (c *EventConsumer) Run(ctx context.Context) error {
	c.log.Info("Starting event consumer", "exchange", c.exchange, "queue", c.queue)

	if err := c.broker.DeclareExchange(c.exchange, "topic"); err != nil {
		return fmt.Errorf("declaring events exchange: %w", err)
	}
	if err := c.broker.DeclareQueue(c.queue); err != nil {
		return fmt.Errorf("declaring events queue: %w", err)
	}
	for _, key := range routingKeys {
		if err := c.broker.BindQueue(c.queue, key, c.exchange); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	messages, err := c.broker.Consume(ctx, c.queue, consumerTag)
	if err != nil {
		return fmt.Errorf("consuming events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msg rabbitmq.Message) {
	log := c.log.With("routing_key", msg.RoutingKey)

	var event domain.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.Error("Failed to unmarshal event", "error", err)
		c.settle(log, msg, "malformed", false)
		return
	}

	created, err := c.Process(ctx, msg.RoutingKey, &event)
	switch {
	case err == nil:
		metrics.EventsConsumed.WithLabelValues("processed").Inc()
		if err := msg.Ack(false); err != nil {
			log.Warn("Failed to ack event", "error", err)
		}
		log.Debug("Event processed", "tenant_id", event.OrganizationID, "created", created)
	case errors.Is(err, errUnroutable) || apperrors.IsValidation(err):
		log.Error("Dropping invalid event", "tenant_id", event.OrganizationID, "error", err)
		c.settle(log, msg, "malformed", false)
	case created > 0:
		// requeueing would duplicate the recipients already notified
		log.Error("Event partially processed", "tenant_id", event.OrganizationID, "created", created, "error", err)
		c.settle(log, msg, "partial", false)
	default:
		log.Error("Failed to process event", "tenant_id", event.OrganizationID, "error", err)
		c.settle(log, msg, "requeued", true)
	}
}

func (c *EventConsumer) settle(log *logger.Logger, msg rabbitmq.Message, status string, requeue bool) {
	metrics.EventsConsumed.WithLabelValues(status).Inc()
	if err := msg.Nack(false, requeue); err != nil {
		log.Warn("Failed to nack event", "error", err)
	}
}

// Process creates one notification per recipient and returns how many were created.
// The actor is never notified of their own event.
func (c *EventConsumer) Process(ctx context.Context, routingKey string, event *domain.Event) (int, error) {
	if event.OrganizationID == "" {
		return 0, apperrors.NewValidationError("event has no organization_id", nil)
	}
	notificationType, ok := TypeFor(routingKey, event.Type)
	if !ok {
		return 0, fmt.Errorf("%w: routing key %q, type %q", errUnroutable, routingKey, event.Type)
	}

	priority := domain.NotificationPriority(strings.ToLower(event.Priority))
	if notificationType == domain.NotificationTypeUrgentActionRequired && priority == "" {
		priority = domain.PriorityUrgent
	}

	created := 0
	var errs []error
	for _, userID := range dedupe(event.RecipientIDs) {
		if userID == event.ActorID {
			continue
		}
		_, err := c.creator.Create(ctx, event.OrganizationID, &domain.CreateNotificationRequest{
			UserID:           userID,
			Title:            event.Title,
			Message:          event.Message,
			Type:             notificationType,
			Priority:         priority,
			ProjectID:        event.ProjectID,
			TaskID:           event.TaskID,
			ContextCardID:    event.ContextCardID,
			DecisionLogID:    event.DecisionLogID,
			HandoffSummaryID: event.HandoffID,
			ContextData:      event.Data,
			ActionRequired:   event.ActionRequired,
			AutoGenerated:    true,
			Source:           "event:" + routingKey,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", userID, err))
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}

// TypeFor maps an event to a notification type. An explicit valid event type wins;
// otherwise "task.due_soon" becomes task_due_soon, and unknown mention.* and
// system.* keys fall back to mention and system_alert.
func TypeFor(routingKey, eventType string) (domain.NotificationType, bool) {
	if t, ok := domain.ParseNotificationType(eventType); ok {
		return t, true
	}
	if t, ok := domain.ParseNotificationType(strings.ReplaceAll(routingKey, ".", "_")); ok {
		return t, true
	}
	switch prefix, _, _ := strings.Cut(routingKey, "."); prefix {
	case "mention":
		return domain.NotificationTypeMention, true
	case "system":
		return domain.NotificationTypeSystemAlert, true
	}
	return "", false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
