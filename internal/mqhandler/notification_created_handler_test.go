package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	mqcontracts "portfolio-notify/contracts/mq"
	"portfolio-notify/internal/model"
)

type fakeCreator struct {
	created []mqcontracts.NotificationCreatedPayload
	err     error
}

func (f *fakeCreator) Create(_ context.Context, p mqcontracts.NotificationCreatedPayload) (*model.NotificationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, p)
	return &model.NotificationRecord{ID: len(f.created), UserID: p.UserID, Type: p.Type}, nil
}

type fakeDeduper struct {
	seen map[string]bool
}

func (f *fakeDeduper) AcquireOnce(_ context.Context, handler, eventID string) bool {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := handler + ":" + eventID
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func payload(t *testing.T, p mqcontracts.NotificationCreatedPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandle(t *testing.T) {
	creator := &fakeCreator{}
	h := NewNotificationCreatedHandler(creator, &fakeDeduper{}, zap.NewNop())

	raw := payload(t, mqcontracts.NotificationCreatedPayload{
		EventID: "evt-1",
		UserID:  7,
		Type:    model.TypeTrade,
		Title:   "Order filled",
	})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
	if len(creator.created) != 1 || creator.created[0].EventID != "evt-1" {
		t.Errorf("created = %+v, want the evt-1 payload", creator.created)
	}
}

func TestHandle_MalformedPayloadDropped(t *testing.T) {
	creator := &fakeCreator{}
	h := NewNotificationCreatedHandler(creator, &fakeDeduper{}, zap.NewNop())

	// Must return nil so the consumer acks, otherwise the poison message
	// would be redelivered forever.
	if err := h.Handle(context.Background(), json.RawMessage(`{not json`)); err != nil {
		t.Errorf("Handle returned %v, want nil for malformed payload", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("nothing should have been created, got %+v", creator.created)
	}
}

func TestHandle_MissingUserDropped(t *testing.T) {
	creator := &fakeCreator{}
	h := NewNotificationCreatedHandler(creator, &fakeDeduper{}, zap.NewNop())

	raw := payload(t, mqcontracts.NotificationCreatedPayload{EventID: "evt-2", Title: "no owner"})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("nothing should have been created, got %+v", creator.created)
	}
}

func TestHandle_DuplicateEventSkipped(t *testing.T) {
	creator := &fakeCreator{}
	h := NewNotificationCreatedHandler(creator, &fakeDeduper{}, zap.NewNop())

	raw := payload(t, mqcontracts.NotificationCreatedPayload{EventID: "evt-3", UserID: 7, Type: model.TypeSystem})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
	if len(creator.created) != 1 {
		t.Errorf("created %d times, want exactly once", len(creator.created))
	}
}

func TestHandle_CreateErrorPropagates(t *testing.T) {
	creator := &fakeCreator{err: errors.New("db down")}
	h := NewNotificationCreatedHandler(creator, &fakeDeduper{}, zap.NewNop())

	raw := payload(t, mqcontracts.NotificationCreatedPayload{EventID: "evt-4", UserID: 7, Type: model.TypeSystem})
	if err := h.Handle(context.Background(), raw); err == nil {
		t.Error("Handle returned nil, want the creator error so the message is nacked")
	}
}
