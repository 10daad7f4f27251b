package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-notify/internal/model"
	"portfolio-notify/pkg/util"
)

const testSecret = "test-secret"

type fakeService struct {
	records     []model.NotificationRecord
	unread      int
	err         error
	markedRead  []int
	markAllUser int
	deleted     []int
	found       bool
}

func (f *fakeService) List(_ context.Context, userID, limit, offset int) ([]model.NotificationRecord, int, error) {
	return f.records, f.unread, f.err
}

func (f *fakeService) MarkRead(_ context.Context, id, userID int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.markedRead = append(f.markedRead, id)
	return f.found, nil
}

func (f *fakeService) MarkAllRead(_ context.Context, userID int) error {
	f.markAllUser = userID
	return f.err
}

func (f *fakeService) Delete(_ context.Context, id, userID int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.deleted = append(f.deleted, id)
	return f.found, nil
}

type fakePublisher struct {
	routingKeys []string
	payloads    []any
	err         error
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.routingKeys = append(f.routingKeys, routingKey)
	f.payloads = append(f.payloads, payload)
	return nil
}

func newTestRouter(t *testing.T, svc *fakeService, pub *fakePublisher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewNotificationHandler(svc, nil, pub, zap.NewNop())

	r := gin.New()
	auth := r.Group("/", AuthMiddleware(testSecret))
	auth.GET("/notifications/user/:userID", h.List)
	auth.PUT("/notifications/user/:userID/read-all", h.MarkAllRead)
	auth.PUT("/notifications/:id/read", h.MarkRead)
	auth.DELETE("/notifications/:id", h.Delete)
	auth.POST("/notifications/simulate", h.Simulate)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string, userID int) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID > 0 {
		token, err := util.GenerateJWT(userID, testSecret)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestList(t *testing.T) {
	svc := &fakeService{
		records: []model.NotificationRecord{
			{ID: 2, UserID: 7, Type: model.TypeTrade, Title: "Order filled"},
			{ID: 1, UserID: 7, Type: model.TypeSystem, Title: "Welcome"},
		},
		unread: 2,
	}
	r := newTestRouter(t, svc, &fakePublisher{})

	w := doRequest(t, r, http.MethodGet, "/notifications/user/7", "", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Notifications []model.NotificationRecord `json:"notifications"`
		UnreadCount   int                        `json:"unreadCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 2 || resp.UnreadCount != 2 {
		t.Errorf("got %d records, unread %d, want 2 and 2", len(resp.Notifications), resp.UnreadCount)
	}
	if resp.Notifications[0].ID != 2 {
		t.Errorf("first record id = %d, want newest-first order", resp.Notifications[0].ID)
	}
}

func TestList_ForbiddenForOtherUser(t *testing.T) {
	r := newTestRouter(t, &fakeService{}, &fakePublisher{})

	w := doRequest(t, r, http.MethodGet, "/notifications/user/7", "", 8)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestList_Unauthorized(t *testing.T) {
	r := newTestRouter(t, &fakeService{}, &fakePublisher{})

	w := doRequest(t, r, http.MethodGet, "/notifications/user/7", "", 0)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMarkRead(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &fakeService{found: true}
		r := newTestRouter(t, svc, &fakePublisher{})

		w := doRequest(t, r, http.MethodPut, "/notifications/3/read?userId=7", "", 7)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
		if len(svc.markedRead) != 1 || svc.markedRead[0] != 3 {
			t.Errorf("service saw %v, want [3]", svc.markedRead)
		}
	})

	t.Run("missing", func(t *testing.T) {
		svc := &fakeService{found: false}
		r := newTestRouter(t, svc, &fakePublisher{})

		w := doRequest(t, r, http.MethodPut, "/notifications/99/read?userId=7", "", 7)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("service error", func(t *testing.T) {
		svc := &fakeService{err: errors.New("db down")}
		r := newTestRouter(t, svc, &fakePublisher{})

		w := doRequest(t, r, http.MethodPut, "/notifications/3/read?userId=7", "", 7)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}

func TestMarkAllRead(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(t, svc, &fakePublisher{})

	w := doRequest(t, r, http.MethodPut, "/notifications/user/7/read-all", "", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if svc.markAllUser != 7 {
		t.Errorf("service saw user %d, want 7", svc.markAllUser)
	}
}

func TestDelete(t *testing.T) {
	svc := &fakeService{found: true}
	r := newTestRouter(t, svc, &fakePublisher{})

	w := doRequest(t, r, http.MethodDelete, "/notifications/5?userId=7", "", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != 5 {
		t.Errorf("service saw %v, want [5]", svc.deleted)
	}
}

func TestSimulate(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		pub := &fakePublisher{}
		r := newTestRouter(t, &fakeService{}, pub)

		body := `{"type":"trade","title":"Order filled","message":"AAPL buy executed"}`
		w := doRequest(t, r, http.MethodPost, "/notifications/simulate", body, 7)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
		if len(pub.routingKeys) != 1 || pub.routingKeys[0] != "notification.created" {
			t.Errorf("routing keys = %v, want [notification.created]", pub.routingKeys)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		pub := &fakePublisher{}
		r := newTestRouter(t, &fakeService{}, pub)

		w := doRequest(t, r, http.MethodPost, "/notifications/simulate", `{"type":"bogus"}`, 7)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if len(pub.routingKeys) != 0 {
			t.Errorf("nothing should have been published, got %v", pub.routingKeys)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker gone")}
		r := newTestRouter(t, &fakeService{}, pub)

		w := doRequest(t, r, http.MethodPost, "/notifications/simulate", `{"title":"x"}`, 7)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}
