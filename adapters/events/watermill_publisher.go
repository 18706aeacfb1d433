package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/nostrauth/core"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	SessionID string `json:"session_id"`
	TokenID   string `json:"token_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a publisher writing to "<topic>.login" and
// "<topic>.logout"
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

// LoginTopic is where login events are published
func (p *WatermillPublisher) LoginTopic() string { return p.topic + ".login" }

// LogoutTopic is where logout events are published
func (p *WatermillPublisher) LogoutTopic() string { return p.topic + ".logout" }

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, event core.LoginEvent) error {
	return p.publish(ctx, p.LoginTopic(), "login", event)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, sessionID string, tokenID string) error {
	return p.publish(ctx, p.LogoutTopic(), "logout", LogoutEvent{
		SessionID: sessionID,
		TokenID:   tokenID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", eventType)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
