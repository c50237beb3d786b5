package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/google/uuid"
)

// Sender delivers one text message to one recipient address.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, recipient, text string) error {
	if s.Logger == nil {
		return nil
	}
	ctx = s.Logger.WithFields(ctx, map[string]any{"recipient": recipient, "text": text})
	s.Logger.Info(ctx, "notification (log only)")
	return nil
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Envelope is the JSON body published for every message.
type Envelope struct {
	EventID    uuid.UUID `json:"event_id"`
	Recipient  string    `json:"recipient"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PubSubSender publishes messages to a topic for an external delivery worker.
type PubSubSender struct {
	pub    publisher
	source string
	now    func() time.Time
}

// NewPubSubSender wraps a Pub/Sub publisher. source tags every envelope.
func NewPubSubSender(p *gcppubsub.Publisher, source string) (*PubSubSender, error) {
	if p == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubSender{pub: &gcpPublisher{Publisher: p}, source: source, now: time.Now}, nil
}

func (s *PubSubSender) Send(ctx context.Context, recipient, text string) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	env := Envelope{
		EventID:    uuid.New(),
		Recipient:  recipient,
		Text:       text,
		Source:     s.source,
		OccurredAt: s.now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id": env.EventID.String(),
			"source":   s.source,
		},
	}
	if _, err := s.pub.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	return r.PublishResult.Get(ctx)
}
