package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRESTClient_FetchNotifications(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/notifications/user/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %s, want 50", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"notifications":[{"id":3,"user_id":7,"type":"trade","title":"Filled","is_read":false,"created_at":"2025-06-01T12:00:00Z","updated_at":"2025-06-01T12:00:00Z"}],"unreadCount":4}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	res, err := c.FetchNotifications(context.Background(), 7, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].ID != 3 {
		t.Errorf("notifications = %+v", res.Notifications)
	}
	if res.UnreadCount != 4 {
		t.Errorf("unreadCount = %d, want 4", res.UnreadCount)
	}
}

func TestRESTClient_Mutations(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	ctx := context.Background()

	t.Run("mark read", func(t *testing.T) {
		if err := c.MarkRead(ctx, 3, 7); err != nil {
			t.Fatal(err)
		}
		if gotMethod != http.MethodPut || gotPath != "/notifications/3/read" || gotQuery != "userId=7" {
			t.Errorf("request = %s %s?%s", gotMethod, gotPath, gotQuery)
		}
	})

	t.Run("mark all read", func(t *testing.T) {
		if err := c.MarkAllRead(ctx, 7); err != nil {
			t.Fatal(err)
		}
		if gotMethod != http.MethodPut || gotPath != "/notifications/user/7/read-all" {
			t.Errorf("request = %s %s", gotMethod, gotPath)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.DeleteNotification(ctx, 3, 7); err != nil {
			t.Fatal(err)
		}
		if gotMethod != http.MethodDelete || gotPath != "/notifications/3" || gotQuery != "userId=7" {
			t.Errorf("request = %s %s?%s", gotMethod, gotPath, gotQuery)
		}
	})
}

func TestRESTClient_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	if err := c.MarkRead(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestRESTClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.MarkRead(ctx, 1, 1); err == nil {
			t.Fatal("expected error")
		}
	}
	// Breaker threshold is 3: later calls fail fast without a request.
	if hits != 3 {
		t.Errorf("backend hit %d times, want 3 before the breaker opened", hits)
	}
}
