package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

const defaultBuffer = 1024

// Hub connects the participants of one process-local session. Every
// envelope sent by an endpoint is delivered, in send order, to every other
// endpoint.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	buffer    int
	logger    *logging.Logger
}

func NewHub(buffer int, logger *logging.Logger) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		endpoints: make(map[string]*Endpoint),
		buffer:    buffer,
		logger:    logger.Named("bus.memory"),
	}
}

// Connect registers participantID and returns its transport.
func (h *Hub) Connect(participantID string) (*Endpoint, error) {
	if participantID == "" {
		return nil, fmt.Errorf("participant id is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.endpoints[participantID]; exists {
		return nil, fmt.Errorf("participant %s already connected", participantID)
	}
	e := &Endpoint{
		hub:   h,
		id:    participantID,
		inbox: make(chan broadcast.Envelope, h.buffer),
		done:  make(chan struct{}),
	}
	h.endpoints[participantID] = e
	return e, nil
}

// Participants lists connected ids in sorted order.
func (h *Hub) Participants() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.endpoints))
	for id := range h.endpoints {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) deliver(ctx context.Context, from string, env broadcast.Envelope) error {
	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.endpoints))
	for id, e := range h.endpoints {
		if id != from {
			targets = append(targets, e)
		}
	}
	h.mu.RUnlock()

	for _, target := range targets {
		if err := target.enqueue(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) disconnect(e *Endpoint) {
	h.mu.Lock()
	current, ok := h.endpoints[e.id]
	if ok && current == e {
		delete(h.endpoints, e.id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.logger.Info("participant disconnected", "participant_id", e.id)
	left := broadcast.Envelope{
		Kind:     broadcast.KindPlayerLeft,
		SenderID: e.id,
		Payload:  broadcast.PlayerLeft{PlayerID: e.id},
	}
	if err := h.deliver(context.Background(), e.id, left); err != nil {
		h.logger.Warn("deliver player left failed", "participant_id", e.id, "error", err)
	}
}

// Endpoint is one participant's transport on a Hub.
type Endpoint struct {
	hub   *Hub
	id    string
	inbox chan broadcast.Envelope
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func (e *Endpoint) Send(ctx context.Context, env broadcast.Envelope) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return broadcast.ErrTransportClosed
	}
	if env.SenderID == "" {
		env.SenderID = e.id
	}
	return e.hub.deliver(ctx, e.id, env)
}

func (e *Endpoint) Receive() <-chan broadcast.Envelope {
	return e.inbox
}

// Close detaches the endpoint, closes its inbox and tells the remaining
// participants it left.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.mu.Lock()
		e.closed = true
		close(e.inbox)
		e.mu.Unlock()
		e.hub.disconnect(e)
	})
	return nil
}

func (e *Endpoint) enqueue(ctx context.Context, env broadcast.Envelope) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}
	select {
	case e.inbox <- env:
		return nil
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deliver to %s: %w", e.id, ctx.Err())
	}
}
