package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"payment approved", TypePaymentApproved, true},
		{"disbursal rejected", TypeDisbursalRejected, true},
		{"top up", TypeBalanceToppedUp, true},
		{"unknown", Type("instance.created"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypePaymentApproved, 42, map[string]interface{}{KeyComment: "ok"})

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("CorrelationID = %v, want %v", evt.CorrelationID, evt.ID)
	}
	if evt.AggregateID != 42 {
		t.Errorf("AggregateID = %v, want 42", evt.AggregateID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("Timestamp should not precede creation")
	}
	if evt.GetPayloadString(KeyComment) != "ok" {
		t.Errorf("GetPayloadString() = %q, want ok", evt.GetPayloadString(KeyComment))
	}

	other := NewEvent(TypePaymentApproved, 42, nil)
	if other.ID == evt.ID {
		t.Error("event IDs should be unique")
	}
	if other.Payload == nil {
		t.Error("nil payload should be replaced with an empty map")
	}
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	evt := NewEvent(TypeDisbursalApproved, 1, map[string]interface{}{KeyPeriod: "2024-11"})
	updated := evt.WithPayload(KeyActorID, int64(9))

	if _, ok := evt.Payload[KeyActorID]; ok {
		t.Error("original payload should not change")
	}
	if updated.GetPayloadInt(KeyActorID) != 9 {
		t.Errorf("GetPayloadInt() = %v, want 9", updated.GetPayloadInt(KeyActorID))
	}
	if updated.GetPayloadString(KeyPeriod) != "2024-11" {
		t.Error("existing payload keys should be preserved")
	}
	if updated.ID != evt.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_GetPayloadIntConversions(t *testing.T) {
	evt := NewEvent(TypePaymentCreated, 1, map[string]interface{}{
		"a": 3,
		"b": float64(4),
		"c": "5",
	})

	if evt.GetPayloadInt("a") != 3 || evt.GetPayloadInt("b") != 4 {
		t.Error("numeric payload values should convert to int64")
	}
	if evt.GetPayloadInt("c") != 0 || evt.GetPayloadInt("missing") != 0 {
		t.Error("non-numeric or missing values should return 0")
	}
}
