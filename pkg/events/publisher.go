package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-gdcache/pkg/fetch"
	"github.com/rs/zerolog"
)

// Publisher publishes every fetch event as a JSON message to a Pub/Sub topic.
// It implements fetch.Observer.
type Publisher struct {
	topic  *pubsub.Topic
	logger zerolog.Logger
}

// NewPublisher creates a publisher for topicID. It accepts a context to verify
// that the topic exists before returning.
func NewPublisher(ctx context.Context, client *pubsub.Client, topicID string, logger zerolog.Logger) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	topic := client.Topic(topicID)

	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", topicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", topicID)
	}

	return &Publisher{
		topic:  topic,
		logger: logger.With().Str("component", "EventPublisher").Str("topic_id", topicID).Logger(),
	}, nil
}

// OnFetch queues ev for publishing and returns immediately. The publish
// outcome is logged asynchronously.
func (p *Publisher) OnFetch(ctx context.Context, ev fetch.Event) {
	payload, err := json.Marshal(RowOf(ev))
	if err != nil {
		p.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to encode fetch event")
		return
	}

	attributes := map[string]string{"op": string(ev.Op)}
	if ev.State != "" {
		attributes["state"] = ev.State
	}
	// Publishing must not be cut short by the request that caused the event.
	result := p.topic.Publish(context.WithoutCancel(ctx), &pubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})

	go func() {
		getCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msgID, err := result.Get(getCtx)
		if err != nil {
			p.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to publish fetch event")
			return
		}
		p.logger.Debug().Str("published_msg_id", msgID).Msg("Fetch event published.")
	}()
}

// Stop flushes any pending messages for the topic, respecting the context's timeout.
func (p *Publisher) Stop(ctx context.Context) error {
	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
