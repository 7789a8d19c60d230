package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"gqlscope/internal/operation"
)

func TestFromEvent(t *testing.T) {
	duration := 120 * time.Millisecond

	tests := []struct {
		name     string
		event    operation.Event
		wantType string
	}{
		{
			"start",
			operation.Event{Type: operation.EventStarted, Operation: operation.Operation{
				ID: "op-1-1", Name: "GetUser", Kind: operation.KindQuery, Status: operation.StatusLoading,
			}},
			TypeOperationStart,
		},
		{
			"complete",
			operation.Event{Type: operation.EventCompleted, Operation: operation.Operation{
				ID: "op-1-2", Status: operation.StatusSuccess, Duration: &duration,
				Data: map[string]any{"user": map[string]any{"name": "Ada"}},
			}},
			TypeOperationComplete,
		},
		{
			"error",
			operation.Event{Type: operation.EventFailed, Operation: operation.Operation{
				ID: "op-1-3", Status: operation.StatusError, Duration: &duration,
				Err: &operation.ErrorDetail{Message: "not found"},
			}},
			TypeOperationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := FromEvent(tt.event)
			if err != nil {
				t.Fatalf("FromEvent failed: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
			if len(msg.Payload) == 0 {
				t.Fatal("empty payload")
			}
		})
	}
}

func TestCompletePayloadShape(t *testing.T) {
	duration := 120 * time.Millisecond
	msg, err := FromEvent(operation.Event{Type: operation.EventCompleted, Operation: operation.Operation{
		ID:        "op-9-9",
		Status:    operation.StatusSuccess,
		Duration:  &duration,
		FromCache: true,
		Data:      map[string]any{"ping": "pong"},
	}})
	if err != nil {
		t.Fatalf("FromEvent failed: %v", err)
	}

	var payload OperationCompletePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if payload.ID != "op-9-9" {
		t.Errorf("ID = %q", payload.ID)
	}
	if payload.DurationMS != 120 {
		t.Errorf("DurationMS = %d, want 120", payload.DurationMS)
	}
	if !payload.FromCache {
		t.Error("FromCache lost in transit")
	}
}

func TestFromEventRejectsUnknownType(t *testing.T) {
	if _, err := FromEvent(operation.Event{Type: "mystery"}); err == nil {
		t.Error("unknown event type should fail")
	}
}

func TestEncodeNilPayload(t *testing.T) {
	msg, err := Encode(TypeAck, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if msg.Type != TypeAck || msg.Payload != nil {
		t.Errorf("got %+v", msg)
	}
}
