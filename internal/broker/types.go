package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Message is a record read from a topic. Value holds the raw JSON body.
type Message struct {
	Topic string
	Key   string
	Value []byte
	Time  time.Time
}

func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Value, v)
}

type Producer interface {
	// Publish JSON-encodes payload and writes it under key.
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error

// DeadLetter wraps a message whose processing failed for good.
type DeadLetter struct {
	SourceTopic string          `json:"source_topic"`
	Key         string          `json:"key"`
	Reason      string          `json:"reason"`
	FailedAt    time.Time       `json:"failed_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RawPayload  string          `json:"raw_payload,omitempty"`
}

func NewDeadLetter(msg Message, reason error, at time.Time) DeadLetter {
	dl := DeadLetter{
		SourceTopic: msg.Topic,
		Key:         msg.Key,
		FailedAt:    at,
	}
	if reason != nil {
		dl.Reason = reason.Error()
	}
	if json.Valid(msg.Value) {
		dl.Payload = json.RawMessage(msg.Value)
	} else {
		dl.RawPayload = string(msg.Value)
	}
	return dl
}
