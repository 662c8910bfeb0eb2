package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/protocol"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// ClientInterface is a connected subscriber. SendJSON and SendBytes must not
// block; they are called with the hub lock held.
type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// SnapshotSource gives the hub the current snapshot of a domain.
type SnapshotSource interface {
	Slot(domain models.Domain) *cache.Slot
}

// Hub fans installed snapshots out to websocket clients subscribed to their domain.
type Hub struct {
	subscribers map[models.Domain]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[models.Domain]bool

	snapshots SnapshotSource
	logger    *zap.Logger
	mu        sync.RWMutex
}

func NewHub(snapshots SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[models.Domain]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[models.Domain]bool),
		snapshots:   snapshots,
		logger:      logger,
	}
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []models.Domain
	for _, name := range req.Payload.Domains {
		domain, ok := models.ParseDomain(name)
		if !ok {
			continue
		}
		// Idempotency: Ignore if already subscribed
		if h.clientSubs[client] != nil && h.clientSubs[client][domain] {
			continue
		}
		valid = append(valid, domain)
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new domains provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[models.Domain]bool)
	}

	for _, domain := range valid {
		h.clientSubs[client][domain] = true
		if h.subscribers[domain] == nil {
			h.subscribers[domain] = make(map[ClientInterface]bool)
		}
		h.subscribers[domain][client] = true
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))

	// Current snapshots are queued under the hub lock, so a concurrent
	// Publish of a newer generation always lands after them.
	for _, domain := range valid {
		snap, ok := h.snapshots.Slot(domain).Read()
		if !ok {
			continue
		}
		msg, err := encodeSnapshot(snap)
		if err != nil {
			h.logger.Error("Failed to encode snapshot", zap.String("domain", string(domain)), zap.Error(err))
			continue
		}
		client.SendBytes(msg)
	}
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []models.Domain
	if subs, ok := h.clientSubs[client]; ok {
		for _, name := range req.Payload.Domains {
			domain := models.Domain(name)
			if subs[domain] {
				delete(subs, domain)
				h.removeSubscriber(domain, client)
				removed = append(removed, domain)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Domains))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for domain := range subs {
			h.removeSubscriber(domain, client)
		}
		// Clear the map but keep the client registered
		h.clientSubs[client] = make(map[models.Domain]bool)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all domains")
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for domain := range subs {
			h.removeSubscriber(domain, client)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

// Publish pushes an installed snapshot to every subscriber of its domain.
// It is registered with cache.Store.OnReplace.
func (h *Hub) Publish(snap cache.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.subscribers[snap.Domain]
	if len(clients) == 0 {
		return
	}

	msg, err := encodeSnapshot(snap)
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.String("domain", string(snap.Domain)), zap.Error(err))
		return
	}
	for client := range clients {
		client.SendBytes(msg)
	}
}

// Subscribers returns how many clients follow domain.
func (h *Hub) Subscribers(domain models.Domain) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[domain])
}

func (h *Hub) removeSubscriber(domain models.Domain, client ClientInterface) {
	delete(h.subscribers[domain], client)
	if len(h.subscribers[domain]) == 0 {
		delete(h.subscribers, domain)
	}
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Message: msg})
}

func encodeSnapshot(snap cache.Snapshot) ([]byte, error) {
	return json.Marshal(protocol.SnapshotMessage{
		Type:       protocol.TypeSnapshot,
		Domain:     string(snap.Domain),
		Generation: snap.Generation,
		UpdatedAt:  snap.UpdatedAt,
		Data:       json.RawMessage(snap.Payload),
	})
}
