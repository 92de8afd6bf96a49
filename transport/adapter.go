// Package transport routes opaque topic payloads between peers.
//
// The adapter deliberately promises very little: delivery is at-least-once
// at best, may duplicate, may reorder, and may never happen. A client's own
// publication is echoed back to its own subscribers like any other message;
// the consumer is responsible for recognizing the echo.
package transport

import "context"

// Status is a point-in-time snapshot of the adapter's connectivity.
type Status struct {
	Connected        bool     `json:"connected"`
	PeerCount        int      `json:"peerCount"`
	LocalPeerID      string   `json:"localPeerId"`
	SubscribedTopics []string `json:"subscribedTopics"`
}

// Subscription is a handle for one topic subscription.
type Subscription interface {
	// Cancel stops delivery to the subscription's handler. Idempotent.
	Cancel()
}

// Adapter is the consumed pub-sub transport surface.
type Adapter interface {
	// Publish sends a payload on a topic. An error means the local node
	// could not hand the payload off; it says nothing about delivery.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Handlers are invoked
	// sequentially per subscriber and must not block for long.
	Subscribe(topic string, handler func(payload []byte)) (Subscription, error)

	// Status reports current connectivity.
	Status() Status
}
