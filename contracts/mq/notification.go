package mq

import "time"

const RoutingKeyNotificationCreated = "notification.created"

// NotificationCreatedPayload is published by upstream producers (trade
// engine, portfolio jobs, market watchers) whenever something noteworthy
// happens to a user's portfolio.
type NotificationCreatedPayload struct {
	EventID   string         `json:"event_id"`
	UserID    int            `json:"user_id"`
	Type      string         `json:"type"` // trade / portfolio / system / market
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
