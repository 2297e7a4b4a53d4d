package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

// RelayPublisher forwards frames to the hubs of other instances.
type RelayPublisher interface {
	Publish(ctx context.Context, employeeID string, frame []byte) error
}

// Hub keeps the table of connected viewers and fans tracking changes out to them.
// It implements ports.Broadcaster.
type Hub struct {
	logger       *logger.Logger
	sendBuffer   int
	writeTimeout time.Duration

	mu      sync.RWMutex
	viewers map[string]*viewer
	relay   RelayPublisher
}

var _ ports.Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub. sendBuffer is the number of frames queued per viewer before the
// viewer is presumed dead and pruned.
func NewHub(log *logger.Logger, sendBuffer int, writeTimeout time.Duration) *Hub {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = wsWriteTimeout
	}
	return &Hub{
		logger:       log,
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		viewers:      make(map[string]*viewer),
	}
}

// SetRelay enables cross-instance delivery.
func (h *Hub) SetRelay(relay RelayPublisher) {
	h.mu.Lock()
	h.relay = relay
	h.mu.Unlock()
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) register(v *viewer) {
	h.mu.Lock()
	h.viewers[v.id] = v
	h.mu.Unlock()
}

// unregister removes v and stops its writer. Safe to call more than once.
func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	if cur, ok := h.viewers[v.id]; ok && cur == v {
		delete(h.viewers, v.id)
	}
	h.mu.Unlock()
	v.close()
}

// prune drops a viewer that could not keep up.
func (h *Hub) prune(ctx context.Context, v *viewer, reason string) {
	h.unregister(v)
	h.logger.Info(ctx, "ws_viewer_pruned", "Live feed viewer pruned", map[string]any{
		"viewer_id":   v.id,
		"employee_id": v.employeeID,
		"reason":      reason,
	})
}

// snapshot copies the viewer set so sends never happen under the table lock.
func (h *Hub) snapshot() []*viewer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		out = append(out, v)
	}
	return out
}

// deliver queues frame to every local viewer following employeeID.
func (h *Hub) deliver(ctx context.Context, employeeID string, frame []byte) {
	for _, v := range h.snapshot() {
		if !v.follows(employeeID) {
			continue
		}
		if !v.enqueue(frame) {
			h.prune(ctx, v, "send buffer full")
		}
	}
}

// DeliverRemote hands a frame received from another instance to local viewers.
func (h *Hub) DeliverRemote(employeeID string, frame []byte) {
	h.deliver(context.Background(), employeeID, frame)
}

func (h *Hub) broadcast(ctx context.Context, employeeID string, msg any) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, "ws_broadcast_encode_failed", "Failed to encode live feed frame", err, nil)
		return
	}
	h.deliver(ctx, employeeID, frame)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, employeeID, frame); err != nil {
		h.logger.Error(ctx, "ws_relay_publish_failed", "Failed to relay live feed frame", err,
			map[string]any{"employee_id": employeeID})
	}
}

// BroadcastLocation sends a location_update to viewers following the session's rider.
func (h *Hub) BroadcastLocation(ctx context.Context, s *route.Session, fix *route.Fix) {
	h.broadcast(ctx, s.EmployeeID, contracts.WSLocationUpdate{
		Type:            contracts.WSTypeLocationUpdate,
		SessionID:       s.ID,
		EmployeeID:      s.EmployeeID,
		Latitude:        fix.Position.Latitude,
		Longitude:       fix.Position.Longitude,
		Accuracy:        fix.Accuracy,
		Speed:           fix.Speed,
		TotalDistanceKM: s.DistanceKM(),
		Timestamp:       fix.Timestamp,
	})
}

// BroadcastSessionStatus sends a session_status_change.
func (h *Hub) BroadcastSessionStatus(ctx context.Context, s *route.Session) {
	h.broadcast(ctx, s.EmployeeID, contracts.WSSessionStatus{
		Type:       contracts.WSTypeSessionStatus,
		SessionID:  s.ID,
		EmployeeID: s.EmployeeID,
		Status:     s.Status.String(),
		Session:    contracts.NewSessionView(s),
	})
}

// BroadcastCompletionDetected tells viewers the rider is back at the start of the route.
func (h *Hub) BroadcastCompletionDetected(ctx context.Context, c ports.CompletionCandidate) {
	h.broadcast(ctx, c.EmployeeID, contracts.WSCompletion{
		Type:               contracts.WSTypeCompletionDetected,
		SessionID:          c.SessionID,
		EmployeeID:         c.EmployeeID,
		DistanceFromStartM: c.DistanceFromStartM,
		ElapsedSeconds:     int64(c.Elapsed / time.Second),
		TotalDistanceKM:    c.TotalDistanceKM,
		ShipmentsCompleted: c.ShipmentsCompleted,
		AutoConfirmAt:      c.AutoConfirmAt,
	})
}

// BroadcastCompletionCancelled withdraws an earlier route_completion_detected.
func (h *Hub) BroadcastCompletionCancelled(ctx context.Context, sessionID, employeeID string) {
	h.broadcast(ctx, employeeID, contracts.WSCompletion{
		Type:       contracts.WSTypeCompletionCancelled,
		SessionID:  sessionID,
		EmployeeID: employeeID,
	})
}
