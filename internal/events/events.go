// Package events publishes task lifecycle notifications.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeSubmitted Type = "submitted"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// Event is one lifecycle notification, keyed by task id.
type Event struct {
	Type         Type      `json:"type"`
	TaskID       string    `json:"task_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	ItemsTotal   int       `json:"items_total,omitempty"`
	Artifact     string    `json:"artifact,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
}

const defaultTopic = "mp3fetch.tasks"

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg Config) Publisher { //nolint:ireturn
	if len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(cfg)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
