package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(Config{})
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}
	if err := p.Publish(context.Background(), Event{Type: TypeSubmitted}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestNewWithBrokersUsesKafka(t *testing.T) {
	p := New(Config{Brokers: []string{"localhost:9092"}})
	kp, ok := p.(*KafkaPublisher)
	if !ok {
		t.Fatalf("expected *KafkaPublisher, got %T", p)
	}
	if kp.writer.Topic != defaultTopic {
		t.Fatalf("expected default topic, got %q", kp.writer.Topic)
	}
	_ = kp.Close()
}

func TestMessageKeyedByTaskID(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := message(Event{Type: TypeFailed, TaskID: "t-1", ErrorKind: "probe", At: at})
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if string(msg.Key) != "t-1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "failed" {
		t.Fatalf("unexpected headers: %+v", msg.Headers)
	}
	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != "failed" || decoded["error_kind"] != "probe" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
	if _, ok := decoded["artifact"]; ok {
		t.Fatalf("empty artifact should be omitted")
	}
}
