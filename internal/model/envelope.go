package model

import "encoding/json"

// Push channel frame events.
const (
	EventConnected    = "connected"
	EventNotification = "notification"
)

// Envelope is the wire frame of the push channel. The server sends one
// "connected" ack frame right after the upgrade, then "notification" frames
// carrying a single NotificationRecord each.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
