package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	mqcontracts "portfolio-notify/contracts/mq"
	"portfolio-notify/internal/model"
	"portfolio-notify/internal/push"
	"portfolio-notify/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// NotificationAPI is what the handlers need from the service layer.
type NotificationAPI interface {
	List(ctx context.Context, userID, limit, offset int) ([]model.NotificationRecord, int, error)
	MarkRead(ctx context.Context, id, userID int) (bool, error)
	MarkAllRead(ctx context.Context, userID int) error
	Delete(ctx context.Context, id, userID int) (bool, error)
}

// EventPublisher is the MQ producer used by the simulate endpoint.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type NotificationHandler struct {
	svc       NotificationAPI
	hub       *push.Hub
	publisher EventPublisher
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewNotificationHandler(svc NotificationAPI, hub *push.Hub, publisher EventPublisher, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:       svc,
		hub:       hub,
		publisher: publisher,
		upgrader: websocket.Upgrader{
			// The panel and the push channel are same-origin in production;
			// origin policy is enforced at the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// authorizedUser rejects requests operating on someone else's records.
func authorizedUser(c *gin.Context, userID int) bool {
	if c.GetInt("user_id") != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

// List handles GET /notifications/user/:userID?limit&offset
func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !authorizedUser(c, userID) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	notifications, unread, err := h.svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("List notifications failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// MarkRead handles PUT /notifications/:id/read?userId=
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID, err := strconv.Atoi(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !authorizedUser(c, userID) {
		return
	}

	changed, err := h.svc.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Mark read failed",
			zap.Int("id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !changed {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead handles PUT /notifications/user/:userID/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !authorizedUser(c, userID) {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), userID); err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Mark all read failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Delete handles DELETE /notifications/:id?userId=
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID, err := strconv.Atoi(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !authorizedUser(c, userID) {
		return
	}

	deleted, err := h.svc.Delete(c.Request.Context(), id, userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Delete notification failed",
			zap.Int("id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stream handles GET /notifications/stream?userId= by upgrading to a
// websocket and handing the connection to the hub. Blocks for the lifetime
// of the session.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !authorizedUser(c, userID) {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return
	}

	h.hub.Serve(userID, conn)
}

type simulateRequest struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url"`
	Metadata  map[string]any `json:"metadata"`
}

// Simulate handles POST /notifications/simulate. It publishes a
// notification.created event for the authenticated user, which exercises
// the whole pipeline end to end (MQ → DB → push → toast).
func (h *NotificationHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Type == "" {
		req.Type = model.TypeSystem
	}
	if !model.ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown notification type"})
		return
	}

	payload := mqcontracts.NotificationCreatedPayload{
		EventID:   uuid.NewString(),
		UserID:    c.GetInt("user_id"),
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.publisher.Publish(c.Request.Context(), mqcontracts.RoutingKeyNotificationCreated, payload); err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to publish simulated event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "event_id": payload.EventID})
}
