package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"portfolio-notify/internal/model"
	"portfolio-notify/pkg/metrics"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new notification and fills in ID, CreatedAt and
// UpdatedAt from the database.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.NotificationRecord) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "notifications", time.Since(start)) }()

	query := `
        INSERT INTO notifications (user_id, type, title, message, action_url, metadata, is_read)
        VALUES ($1, $2, $3, $4, $5, $6, false)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.ActionURL,
		n.Metadata,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification",
			zap.Int("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return err
	}

	r.logger.Debug("Notification inserted",
		zap.Int("id", n.ID),
		zap.Int("user_id", n.UserID),
	)
	return nil
}

// ListByUser returns one page of a user's notifications, most recent first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.NotificationRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "notifications", time.Since(start)) }()

	query := `
        SELECT id, user_id, type, title, message, is_read, action_url, metadata, created_at, updated_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]model.NotificationRecord, 0, limit)
	for rows.Next() {
		var n model.NotificationRecord
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.IsRead,
			&n.ActionURL,
			&n.Metadata,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the authoritative unread count for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("count", "notifications", time.Since(start)) }()

	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flips one notification to read. Returns false if the id does not
// exist for this user.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "notifications", time.Since(start)) }()

	query := `
        UPDATE notifications SET is_read = TRUE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead flips every unread notification of a user to read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "notifications", time.Since(start)) }()

	query := `
        UPDATE notifications SET is_read = TRUE, updated_at = NOW()
        WHERE user_id = $1 AND is_read = FALSE
    `
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// Delete removes one notification. Returns false if the id does not exist
// for this user.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID int) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("delete", "notifications", time.Since(start)) }()

	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
