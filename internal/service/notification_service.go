package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/events"
)

// NotificationService reports board activity once it has been committed.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketDeleted,
		events.EventCategoryCreated,
		events.EventCategoryUpdated,
		events.EventCategoryDeleted,
		events.EventCategoriesReorder,
	} {
		n.dispatcher.Subscribe(eventType, n.handleActivity)
	}
	n.dispatcher.Subscribe(events.EventTicketMoved, n.handleTicketMoved)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

func (n *NotificationService) handleActivity(ctx context.Context, event events.Event) error {
	n.logger.Info("BoardActivity", eventFields(event)...)
	return n.deliverWebhook(ctx, event)
}

func (n *NotificationService) handleTicketMoved(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMoved", eventFields(event)...)
	return n.deliverWebhook(ctx, event)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", eventFields(event)...)
	return n.deliverWebhook(ctx, event)
}

// deliverWebhook POSTs event as JSON to the configured webhook. Any status
// outside 2xx counts as a failed delivery.
func (n *NotificationService) deliverWebhook(_ context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	status, _, errs := fiber.Post(url).
		Timeout(n.cfg.WebhookTimeout()).
		JSON(event).
		Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("deliver webhook: %w", errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("deliver webhook: unexpected status %d", status)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int("status", status))
	return nil
}

func eventFields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("actor", event.Actor.UserID),
		zap.Any("payload", event.Payload),
	}
	if event.TicketID != "" {
		fields = append(fields, zap.String("ticket_id", event.TicketID))
	}
	if event.CategoryID != "" {
		fields = append(fields, zap.String("category_id", event.CategoryID))
	}
	return fields
}
