package model

import "time"

// Notification types. Closed set, used for presentation category only.
const (
	TypeTrade     = "trade"
	TypePortfolio = "portfolio"
	TypeSystem    = "system"
	TypeMarket    = "market"
)

// NotificationRecord 表示 notifications 表的完整结构。
// 服务端是 is_read 的事实来源，客户端只在服务端确认后修改本地状态。
type NotificationRecord struct {
	ID        int            `json:"id"`
	UserID    int            `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ValidType reports whether t is one of the known notification types.
func ValidType(t string) bool {
	switch t {
	case TypeTrade, TypePortfolio, TypeSystem, TypeMarket:
		return true
	}
	return false
}
