package network

import (
	"context"

	"github.com/arthurgeek/croptails/logging"
)

const (
	// EventSubscriberJoined is emitted when a websocket client starts receiving frames.
	EventSubscriberJoined logging.EventType = "network.subscriber_joined"
	// EventSubscriberLeft is emitted when a websocket client is dropped.
	EventSubscriberLeft logging.EventType = "network.subscriber_left"
)

// SubscriberPayload captures the fan-out size after the change.
type SubscriberPayload struct {
	Clients int    `json:"clients"`
	Reason  string `json:"reason,omitempty"`
}

// SubscriberJoined publishes an info event for a new websocket client.
func SubscriberJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// SubscriberLeft publishes an info event when a websocket client goes away.
func SubscriberLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SubscriberPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
