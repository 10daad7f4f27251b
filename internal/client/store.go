// Package client is the consumer side of the notification pipeline: the
// record store, the REST collaborator client and the push channel
// lifecycle. The notification center panel and the toast scheduler both
// feed off this package.
package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"portfolio-notify/internal/model"
)

// API is the REST collaborator the store mutates through. Every mutation is
// apply-after-confirm: local state changes only once the server call
// succeeded.
type API interface {
	FetchNotifications(ctx context.Context, userID, limit, offset int) (*FetchResult, error)
	MarkRead(ctx context.Context, id, userID int) error
	MarkAllRead(ctx context.Context, userID int) error
	DeleteNotification(ctx context.Context, id, userID int) error
}

// FetchResult is one server page plus the authoritative unread count.
type FetchResult struct {
	Notifications []model.NotificationRecord `json:"notifications"`
	UnreadCount   int                        `json:"unreadCount"`
}

// Store holds the canonical record list for the active user, most recent
// first, keyed by id, with the derived unread count kept consistent through
// every mutation path.
type Store struct {
	api    API
	logger *zap.Logger

	mu      sync.Mutex
	records []model.NotificationRecord
	unread  int
}

func NewStore(api API, logger *zap.Logger) *Store {
	return &Store{
		api:    api,
		logger: logger,
	}
}

// Add inserts a record at the head of the collection. Idempotent by id: the
// transport is at-least-once, so a redelivered record must not duplicate or
// double-count. Returns true if the record was actually inserted.
func (s *Store) Add(rec model.NotificationRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.logger.Debug("Ignoring duplicate notification", zap.Int("id", rec.ID))
			return false
		}
	}

	s.records = append([]model.NotificationRecord{rec}, s.records...)
	if !rec.IsRead {
		s.unread++
	}
	return true
}

// Fetch replaces the whole collection with one server page. This is the
// reconciliation point between local state and ground truth: the unread
// count comes from the server, not from counting the page.
func (s *Store) Fetch(ctx context.Context, userID, limit, offset int) error {
	res, err := s.api.FetchNotifications(ctx, userID, limit, offset)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = res.Notifications
	s.unread = res.UnreadCount
	s.mu.Unlock()
	return nil
}

// MarkRead marks one record read. No-op for an unknown or already-read id.
// The flip and the count decrement happen only after the server confirmed.
func (s *Store) MarkRead(ctx context.Context, id, userID int) error {
	s.mu.Lock()
	idx := -1
	for i := range s.records {
		if s.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || s.records[idx].IsRead {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, id, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-find: a Fetch may have replaced the slice while we were waiting.
	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].IsRead {
				s.records[i].IsRead = true
				if s.unread > 0 {
					s.unread--
				}
			}
			break
		}
	}
	return nil
}

// MarkAllRead marks every record read and zeroes the count, after server
// confirmation.
func (s *Store) MarkAllRead(ctx context.Context, userID int) error {
	if err := s.api.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		s.records[i].IsRead = true
	}
	s.unread = 0
	return nil
}

// Delete removes one record after server confirmation. Decrements the count
// if the record was unread. No-op for an unknown id.
func (s *Store) Delete(ctx context.Context, id, userID int) error {
	s.mu.Lock()
	found := false
	for i := range s.records {
		if s.records[i].ID == id {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil
	}

	if err := s.api.DeleteNotification(ctx, id, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].IsRead && s.unread > 0 {
				s.unread--
			}
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

// Records returns a copy of the ordered collection.
func (s *Store) Records() []model.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.NotificationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// UnreadCount returns the derived unread count.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}
