package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-notify/internal/model"
)

// createPushServer creates a test websocket endpoint.
func createPushServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func sendAck(conn *websocket.Conn) error {
	return conn.WriteJSON(model.Envelope{Event: model.EventConnected})
}

func sendRecord(conn *websocket.Conn, rec model.NotificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return conn.WriteJSON(model.Envelope{Event: model.EventNotification, Data: data})
}

type sinkRecorder struct {
	mu   sync.Mutex
	recs []model.NotificationRecord
}

func (s *sinkRecorder) sink(rec model.NotificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *sinkRecorder) ids() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, len(s.recs))
	for i, r := range s.recs {
		ids[i] = r.ID
	}
	return ids
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestChannel_ConnectAndForward(t *testing.T) {
	server := createPushServer(t, func(conn *websocket.Conn) {
		sendAck(conn)
		sendRecord(conn, model.NotificationRecord{ID: 1, Type: model.TypeTrade})
		// Malformed frames must be dropped, not crash the loop.
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"notification","data":{"title":"no id"}}`))
		sendRecord(conn, model.NotificationRecord{ID: 2, Type: model.TypeMarket})
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	rec := &sinkRecorder{}
	ch := NewChannel(ChannelConfig{URL: httpToWS(server.URL), Token: "t"}, rec.sink, zap.NewNop())

	if err := ch.Connect(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer ch.Disconnect()

	if ch.State() != StateConnected {
		t.Errorf("state = %v, want connected", ch.State())
	}

	waitFor(t, time.Second, func() bool { return len(rec.ids()) == 2 })
	ids := rec.ids()
	if ids[0] != 1 || ids[1] != 2 {
		t.Errorf("forwarded ids = %v, want [1 2]", ids)
	}
}

func TestChannel_HandshakeRejected(t *testing.T) {
	server := createPushServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(model.Envelope{Event: "bogus"})
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	ch := NewChannel(ChannelConfig{URL: httpToWS(server.URL), Token: "t"}, func(model.NotificationRecord) {}, zap.NewNop())

	if err := ch.Connect(context.Background(), 1); err == nil {
		t.Fatal("expected handshake error")
	}
	if ch.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", ch.State())
	}
}

func TestChannel_DisconnectIdempotent(t *testing.T) {
	server := createPushServer(t, func(conn *websocket.Conn) {
		sendAck(conn)
		time.Sleep(time.Second)
	})
	defer server.Close()

	ch := NewChannel(ChannelConfig{URL: httpToWS(server.URL), Token: "t"}, func(model.NotificationRecord) {}, zap.NewNop())
	if err := ch.Connect(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	ch.Disconnect()
	ch.Disconnect() // must be a safe no-op
	ch.Disconnect()

	if ch.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", ch.State())
	}
}

func TestChannel_ServerCloseSurfacesAsDisconnected(t *testing.T) {
	release := make(chan struct{})
	server := createPushServer(t, func(conn *websocket.Conn) {
		sendAck(conn)
		<-release
	})
	defer server.Close()

	var mu sync.Mutex
	var transitions []ConnState

	ch := NewChannel(ChannelConfig{URL: httpToWS(server.URL), Token: "t"}, func(model.NotificationRecord) {}, zap.NewNop())
	ch.OnStateChange(func(s ConnState) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})

	if err := ch.Connect(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	close(release)

	waitFor(t, time.Second, func() bool { return ch.State() == StateDisconnected })

	mu.Lock()
	defer mu.Unlock()
	want := []ConnState{StateConnecting, StateConnected, StateDisconnected}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestChannel_ReconnectReplacesConnection(t *testing.T) {
	server := createPushServer(t, func(conn *websocket.Conn) {
		sendAck(conn)
		time.Sleep(time.Second)
	})
	defer server.Close()

	ch := NewChannel(ChannelConfig{URL: httpToWS(server.URL), Token: "t"}, func(model.NotificationRecord) {}, zap.NewNop())

	if err := ch.Connect(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	// Re-entry closes the first channel before opening the second.
	if err := ch.Connect(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer ch.Disconnect()

	if ch.State() != StateConnected {
		t.Errorf("state = %v, want connected after re-entry", ch.State())
	}
}
