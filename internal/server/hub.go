// internal/server/hub.go
package server

import (
	"fmt"
	"sync"

	"github.com/AlverezYari/skyframe/internal/logging"
	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"go.uber.org/zap"
)

const (
	// QueueCapacity is the per-client outbound buffer.
	QueueCapacity = 20
	// LowWater is the free-slot count below which a client is told to
	// reconnect instead of receiving more messages.
	LowWater = 5
)

// Envelope is a client message encoded once for all subscribers.
type Envelope struct {
	Message messages.ClientMessage
	Payload []byte
	Binary  bool
}

func NewEnvelope(msg messages.ClientMessage) (Envelope, error) {
	payload, binary, err := msg.Encode()
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return Envelope{Message: msg, Payload: payload, Binary: binary}, nil
}

type subscriber struct {
	queue chan Envelope
}

// Hub fans the outbound stream out to every subscriber without ever waiting
// on a slow one.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	subscribers map[int]*subscriber
	closed      bool
	nextID      int

	reconnect Envelope
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	reconnect, err := NewEnvelope(messages.NewClientReconnect())
	if err != nil {
		panic(err)
	}
	return &Hub{
		logger:      logger,
		metrics:     m,
		subscribers: make(map[int]*subscriber),
		reconnect:   reconnect,
	}
}

// Subscribe registers a new client and returns its id and queue. The queue
// is closed by Unsubscribe or when the hub stops. Once the hub has stopped
// the returned queue is already closed.
func (h *Hub) Subscribe() (int, <-chan Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.closed {
		queue := make(chan Envelope)
		close(queue)
		return id, queue
	}
	sub := &subscriber{queue: make(chan Envelope, QueueCapacity)}
	h.subscribers[id] = sub
	h.metrics.Set(metrics.HubClients, float64(len(h.subscribers)))
	h.logger.Debug("client subscribed", zap.Int("client", id))
	return id, sub.queue
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(sub.queue)
	h.metrics.Set(metrics.HubClients, float64(len(h.subscribers)))
	h.logger.Debug("client unsubscribed", zap.Int("client", id))
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast encodes msg once and offers it to every subscriber.
func (h *Hub) Broadcast(msg messages.ClientMessage) error {
	env, err := NewEnvelope(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		if cap(sub.queue)-len(sub.queue) < LowWater {
			select {
			case sub.queue <- h.reconnect:
			default:
			}
			h.metrics.Inc(metrics.HubReconnects)
			h.logger.Warn("client queue almost full, requesting reconnect", zap.Int("client", id))
			continue
		}

		select {
		case sub.queue <- env:
		default:
			h.metrics.Inc(metrics.HubDrops)
			h.logger.Warn("client queue full, message dropped", zap.Int("client", id))
		}
	}
	return nil
}

// Run broadcasts everything received on in. When in is closed every
// subscriber is released.
func (h *Hub) Run(in <-chan messages.ClientMessage) {
	defer h.Close()
	for msg := range in {
		logging.LogErr(h.logger, "broadcast", h.Broadcast(msg))
	}
}

// Close unsubscribes every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.queue)
	}
	h.metrics.Set(metrics.HubClients, 0)
}
