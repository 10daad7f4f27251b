package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "portfolio-notify/contracts/mq"
	"portfolio-notify/internal/model"
	"portfolio-notify/pkg/metrics"
)

const (
	handlerName = "notification_created"
	queueName   = "notification.created.q"
)

type notificationCreator interface {
	Create(ctx context.Context, p mqcontracts.NotificationCreatedPayload) (*model.NotificationRecord, error)
}

type eventDeduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
}

type NotificationCreatedHandler struct {
	svc     notificationCreator
	deduper eventDeduper
	logger  *zap.Logger
}

func NewNotificationCreatedHandler(svc notificationCreator, deduper eventDeduper, logger *zap.Logger) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		svc:     svc,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle processes one notification.created event. Malformed payloads are
// dropped with a log instead of nacked, so a poison message can never wedge
// the queue.
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyNotificationCreated, queueName, time.Since(start))
	}()

	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Warn("Dropping malformed notification.created payload", zap.Error(err))
		return nil
	}
	if p.UserID <= 0 {
		h.logger.Warn("Dropping notification.created without user_id",
			zap.String("event_id", p.EventID),
		)
		return nil
	}

	if p.EventID != "" && !h.deduper.AcquireOnce(ctx, handlerName, p.EventID) {
		return nil
	}

	h.logger.Info("Handling notification.created event",
		zap.String("event_id", p.EventID),
		zap.Int("user_id", p.UserID),
		zap.String("type", p.Type),
	)

	rec, err := h.svc.Create(ctx, p)
	if err != nil {
		h.logger.Error("Failed to create notification", zap.Error(err))
		return err
	}

	h.logger.Debug("Notification created",
		zap.Int("id", rec.ID),
		zap.Int("user_id", rec.UserID),
	)
	return nil
}
