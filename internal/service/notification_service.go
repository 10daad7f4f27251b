package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "portfolio-notify/contracts/mq"
	"portfolio-notify/internal/model"
	"portfolio-notify/internal/push"
	"portfolio-notify/internal/repository"
	"portfolio-notify/pkg/metrics"
)

// NotificationService ties persistence, the unread cache and push fanout
// together. It backs both the MQ ingest path and the REST surface.
type NotificationService struct {
	repo   *repository.NotificationRepository
	cache  *UnreadCache
	hub    *push.Hub
	logger *zap.Logger
}

func NewNotificationService(
	repo *repository.NotificationRepository,
	cache *UnreadCache,
	hub *push.Hub,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:   repo,
		cache:  cache,
		hub:    hub,
		logger: logger,
	}
}

// Create persists a notification.created event and fans the stored record
// out to the user's live push sessions. Persist-then-push: a user who was
// offline still finds the record on the next fetch.
func (s *NotificationService) Create(ctx context.Context, p mqcontracts.NotificationCreatedPayload) (*model.NotificationRecord, error) {
	if p.UserID <= 0 {
		return nil, fmt.Errorf("notification.created without user_id")
	}
	if !model.ValidType(p.Type) {
		s.logger.Warn("Unknown notification type, coercing to system",
			zap.String("type", p.Type),
			zap.Int("user_id", p.UserID),
		)
		p.Type = model.TypeSystem
	}

	rec := &model.NotificationRecord{
		UserID:    p.UserID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		ActionURL: p.ActionURL,
		Metadata:  p.Metadata,
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	metrics.IncrementNotificationCreated(rec.Type)

	s.cache.Invalidate(ctx, rec.UserID)
	s.hub.Publish(rec.UserID, *rec)

	return rec, nil
}

// List returns one page of the user's notifications plus the authoritative
// unread count.
func (s *NotificationService) List(ctx context.Context, userID, limit, offset int) ([]model.NotificationRecord, int, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, ok := s.cache.Get(ctx, userID)
	if !ok {
		unread, err = s.repo.UnreadCount(ctx, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count unread: %w", err)
		}
		s.cache.Set(ctx, userID, unread)
	}

	return notifications, unread, nil
}

// MarkRead flips one record to read. Returns false if the id is unknown for
// this user.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int) (bool, error) {
	changed, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark read: %w", err)
	}
	if changed {
		s.cache.Invalidate(ctx, userID)
	}
	return changed, nil
}

// MarkAllRead flips every unread record of the user to read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark all read: %w", err)
	}
	s.cache.Set(ctx, userID, 0)
	return nil
}

// Delete removes one record. Returns false if the id is unknown for this
// user.
func (s *NotificationService) Delete(ctx context.Context, id, userID int) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	if deleted {
		s.cache.Invalidate(ctx, userID)
	}
	return deleted, nil
}
