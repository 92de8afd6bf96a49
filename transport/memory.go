package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNodeClosed indicates an operation on a closed memory node.
var ErrNodeClosed = errors.New("transport: node closed")

// Hub is an in-process message fabric connecting MemoryNode adapters. It
// mirrors the external transport's semantics closely enough for tests and
// single-machine demos: every publication is delivered to every node on the
// hub, including the publisher itself (the self-echo), with per-node FIFO
// but no cross-node ordering.
type Hub struct {
	mu    sync.RWMutex
	nodes map[string]*MemoryNode
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{nodes: make(map[string]*MemoryNode)}
}

// Node creates and attaches a new adapter with the given peer ID.
func (h *Hub) Node(peerID string) *MemoryNode {
	node := &MemoryNode{
		hub:     h,
		id:      peerID,
		subs:    make(map[string]map[int]func([]byte)),
		deliver: make(chan memoryDelivery, 256),
		closed:  make(chan struct{}),
	}
	go node.pump()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[peerID] = node
	return node
}

func (h *Hub) fanOut(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, node := range h.nodes {
		node.enqueue(memoryDelivery{topic: topic, payload: payload})
	}
}

func (h *Hub) detach(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nodes, peerID)
}

func (h *Hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

type memoryDelivery struct {
	topic   string
	payload []byte
}

// MemoryNode is one client's view of the hub, implementing Adapter.
type MemoryNode struct {
	hub *Hub
	id  string

	mu      sync.RWMutex
	subs    map[string]map[int]func([]byte)
	nextSub int

	deliver chan memoryDelivery

	closeOnce sync.Once
	closed    chan struct{}
}

// Publish implements Adapter. Delivery is asynchronous.
func (n *MemoryNode) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-n.closed:
		return ErrNodeClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	copied := append([]byte(nil), payload...)
	n.hub.fanOut(topic, copied)
	return nil
}

// Subscribe implements Adapter.
func (n *MemoryNode) Subscribe(topic string, handler func(payload []byte)) (Subscription, error) {
	select {
	case <-n.closed:
		return nil, ErrNodeClosed
	default:
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[int]func([]byte))
	}
	id := n.nextSub
	n.nextSub++
	n.subs[topic][id] = handler

	return &memorySubscription{node: n, topic: topic, id: id}, nil
}

// Status implements Adapter. PeerCount excludes the node itself.
func (n *MemoryNode) Status() Status {
	n.mu.RLock()
	topics := make([]string, 0, len(n.subs))
	for topic := range n.subs {
		topics = append(topics, topic)
	}
	n.mu.RUnlock()

	peers := n.hub.size() - 1
	if peers < 0 {
		peers = 0
	}
	return Status{
		Connected:        true,
		PeerCount:        peers,
		LocalPeerID:      n.id,
		SubscribedTopics: topics,
	}
}

// Close detaches the node from the hub and stops delivery.
func (n *MemoryNode) Close() {
	n.closeOnce.Do(func() {
		n.hub.detach(n.id)
		close(n.closed)
	})
}

func (n *MemoryNode) enqueue(d memoryDelivery) {
	select {
	case n.deliver <- d:
	case <-n.closed:
	}
}

func (n *MemoryNode) pump() {
	for {
		select {
		case d := <-n.deliver:
			n.dispatch(d.topic, d.payload)
		case <-n.closed:
			return
		}
	}
}

func (n *MemoryNode) dispatch(topic string, payload []byte) {
	n.mu.RLock()
	handlers := make([]func([]byte), 0, len(n.subs[topic]))
	for _, handler := range n.subs[topic] {
		handlers = append(handlers, handler)
	}
	n.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

type memorySubscription struct {
	node  *MemoryNode
	topic string
	id    int
	once  sync.Once
}

// Cancel implements Subscription.
func (s *memorySubscription) Cancel() {
	s.once.Do(func() {
		s.node.mu.Lock()
		defer s.node.mu.Unlock()
		if handlers := s.node.subs[s.topic]; handlers != nil {
			delete(handlers, s.id)
		}
	})
}
