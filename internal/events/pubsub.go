package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"studio/internal/infra"
)

// PubSubOptions configures the Pub/Sub publisher.
type PubSubOptions struct {
	ProjectID       string
	Topic           string
	CredentialsJSON string
	Logger          *infra.Logger
}

// PubSubPublisher publishes events as JSON messages with attributes that
// subscribers can filter on.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *infra.Logger
}

func NewPubSubPublisher(ctx context.Context, opts PubSubOptions) (*PubSubPublisher, error) {
	projectID := strings.TrimSpace(opts.ProjectID)
	topicName := strings.TrimSpace(opts.Topic)
	if projectID == "" || topicName == "" {
		return nil, errors.New("events: pubsub project and topic are required")
	}
	var (
		client *pubsub.Client
		err    error
	)
	if creds := strings.TrimSpace(opts.CredentialsJSON); creds != "" {
		client, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(creds)))
	} else {
		client, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("events: pubsub client: %w", err)
	}
	return &PubSubPublisher{
		client: client,
		topic:  client.Topic(topicName),
		logger: infra.OrDiscard(opts.Logger),
	}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := buildMessage(evt)
	if err != nil {
		return err
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", evt.Type, err)
	}
	p.logger.Debug().Str("event", evt.Type).Str("order_id", evt.OrderID).Str("message_id", id).Msg("events: published")
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func buildMessage(evt Event) (*pubsub.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s: %w", evt.Type, err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":     evt.Type,
			"order_id": evt.OrderID,
			"status":   evt.Status,
		},
	}, nil
}

var _ Publisher = (*PubSubPublisher)(nil)
