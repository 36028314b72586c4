package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const (
	EventWorkOrderCompleted = "work_order.completed"
	EventWorkOrderReopened  = "work_order.reopened"
)

type WorkOrderEvent struct {
	Action        string    `json:"action"`
	Incident      string    `json:"incident"`
	ServiceNo     string    `json:"service_no,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationId string    `json:"correlation_id,omitempty"`
}

// EventPublisher publishes work order lifecycle events to one Pub/Sub topic.
type EventPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	// Common fallback.
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// NewEventPublisherFromEnv returns nil, nil when PUBSUB_TOPIC is not set.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewEventPublisherFromEnv(ctx context.Context) (*EventPublisher, error) {
	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return nil, nil
	}
	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	c, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	log.Printf("pubsub publisher ready (project_id=%s topic=%s)", projectID, topicName)
	return NewEventPublisher(c, topicName), nil
}

func NewEventPublisher(client *pubsub.Client, topicName string) *EventPublisher {
	return &EventPublisher{client: client, topic: client.Topic(topicName)}
}

// PublishWorkOrderEvent publishes and waits for the server-assigned message ID.
func (p *EventPublisher) PublishWorkOrderEvent(ctx context.Context, ev WorkOrderEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"action":   ev.Action,
			"incident": ev.Incident,
		},
	})
	return result.Get(ctx)
}

func (p *EventPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	p.topic.Stop()
	return p.client.Close()
}
