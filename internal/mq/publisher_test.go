package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParsePayload_JobDispatch(t *testing.T) {
	scheduleID := uuid.New()

	// Конверт проходит полный цикл сериализации, как на проводе
	original := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobDispatch,
		Payload:   JobDispatchPayload{JobType: "orders.fetch_new", ScheduleID: scheduleID},
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var received Message
	if err := json.Unmarshal(body, &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := ParsePayload[JobDispatchPayload](&received)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.JobType != "orders.fetch_new" {
		t.Errorf("unexpected job type %q", payload.JobType)
	}
	if payload.ScheduleID != scheduleID {
		t.Errorf("expected schedule id %s, got %s", scheduleID, payload.ScheduleID)
	}
}

func TestParsePayload_Mismatch(t *testing.T) {
	msg := &Message{
		ID:      uuid.New().String(),
		Type:    MessageTypeJobDispatch,
		Payload: map[string]any{"schedule_id": "not-a-uuid"},
	}

	if _, err := ParsePayload[JobDispatchPayload](msg); err == nil {
		t.Error("expected error for malformed schedule id")
	}
}
