package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/eventcompass/eventcompass/internal/service"
)

// Handler bridges service events to dashboard messages. It subscribes to
// the service's observer hook and formats each event for broadcast,
// refreshing collection statistics after every entity change.
type Handler struct {
	server *Server
	svc    *service.Service
	logger *log.Logger

	unsubscribe func()
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, svc *service.Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		svc:    svc,
		logger: logger,
	}
}

// Start subscribes to the service's event stream.
func (h *Handler) Start() {
	h.unsubscribe = h.svc.Subscribe(h.handleEvent)
}

// Stop detaches from the service.
func (h *Handler) Stop() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

func (h *Handler) handleEvent(event service.Event) {
	switch event.Type {
	case service.EventEntityChanged:
		h.onEntityChanged(string(event.Kind))
	case service.EventSyncState:
		h.onSyncState(string(event.SyncState))
	case service.EventSyncComplete:
		h.onSyncComplete(event.Duration)
	}
}

func (h *Handler) onEntityChanged(kind string) {
	data, err := json.Marshal(EntityUpdateData{Kind: kind})
	if err != nil {
		h.logger.Printf("Failed to marshal entity data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeEntityUpdate,
		Timestamp: time.Now(),
		Data:      data,
	})

	h.broadcastStats()
}

func (h *Handler) onSyncState(state string) {
	data, err := json.Marshal(SyncStateData{State: state})
	if err != nil {
		h.logger.Printf("Failed to marshal state data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncState,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (h *Handler) onSyncComplete(duration time.Duration) {
	pending, err := h.svc.PendingOperations(context.Background())
	if err != nil {
		h.logger.Printf("Failed to count pending operations: %v", err)
	}

	data, err := json.Marshal(SyncCompleteData{Duration: duration, Pending: pending})
	if err != nil {
		h.logger.Printf("Failed to marshal sync data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncComplete,
		Timestamp: time.Now(),
		Data:      data,
	})

	h.broadcastStats()
}

// broadcastStats sends current collection counts to all clients
func (h *Handler) broadcastStats() {
	pending, err := h.svc.PendingOperations(context.Background())
	if err != nil {
		h.logger.Printf("Failed to count pending operations: %v", err)
	}

	stats := StatsData{
		Members:   len(h.svc.Members()),
		Materials: len(h.svc.Materials()),
		Schedules: len(h.svc.Schedules()),
		Tasks:     len(h.svc.Tasks()),
		Todos:     len(h.svc.Todos()),
		Pending:   pending,
	}

	data, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      data,
	})
}
