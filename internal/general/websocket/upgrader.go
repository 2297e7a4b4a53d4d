package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rider-tracking/internal/domain/user"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/jwt"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	authTimeout      = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
	maxFrameSize     = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SnapshotSource lists the open sessions with their latest fix.
type SnapshotSource interface {
	ActiveSnapshot(ctx context.Context) ([]ports.ActiveSession, error)
}

// Feed accepts live feed viewers: it authenticates them, sends the active-session snapshot and
// applies their subscription messages. Delivery goes through the Hub.
type Feed struct {
	hub    *Hub
	jwtMgr *jwt.Manager
	source SnapshotSource
	logger *logger.Logger
}

// NewFeed creates the live feed endpoint.
func NewFeed(hub *Hub, jwtMgr *jwt.Manager, source SnapshotSource, log *logger.Logger) *Feed {
	return &Feed{hub: hub, jwtMgr: jwtMgr, source: source, logger: log}
}

// Connect handles GET /ws/tracking[?employees=E1,E2].
func (f *Feed) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	claims, ok := f.authenticate(r.Context(), conn)
	if !ok {
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.Close()
		return
	}

	// The connection outlives the request context.
	ctx := f.logger.WithRequestID(context.Background(), logger.RequestID(r.Context()))

	v := newViewer(uuid.NewString(), claims.Subject, claims.Role, conn, f.hub.sendBuffer)
	if requested := parseEmployees(r.URL.Query().Get("employees")); len(requested) > 0 {
		allowed := requested[:0]
		for _, id := range requested {
			if v.allowed(id) {
				allowed = append(allowed, id)
			}
		}
		if len(allowed) < len(requested) {
			v.enqueue(errorFrame("riders may only follow themselves"))
		}
		if len(allowed) > 0 {
			v.only(allowed)
		}
	}

	f.hub.register(v)
	go f.hub.writePump(ctx, v)
	defer f.hub.unregister(v)

	f.logger.Info(ctx, "ws_viewer_connected", "Live feed viewer connected", map[string]any{
		"viewer_id":   v.id,
		"employee_id": v.employeeID,
		"role":        v.role.String(),
	})

	if err := f.sendSnapshot(ctx, v); err != nil {
		f.logger.Error(ctx, "ws_snapshot_failed", "Failed to load active sessions", err, map[string]any{"viewer_id": v.id})
		v.enqueue(errorFrame("failed to load active sessions"))
	}

	f.readLoop(ctx, v)
}

// authenticate expects {"type":"auth","token":"Bearer <jwt>"} as the first frame.
func (f *Feed) authenticate(ctx context.Context, conn *websocket.Conn) (*jwt.Claims, bool) {
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		f.logger.Error(ctx, "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return nil, false
	}

	mt, first, err := conn.ReadMessage()
	if err != nil {
		f.logger.Error(ctx, "ws_auth_read_failed", "Viewer did not authenticate in time", err, nil)
		_ = writeFrame(conn, websocket.TextMessage, errorFrame("authentication timeout"), wsWriteTimeout)
		return nil, false
	}
	if mt != websocket.TextMessage {
		_ = writeFrame(conn, websocket.TextMessage, errorFrame("auth message must be in text format"), wsWriteTimeout)
		return nil, false
	}

	claims, err := jwt.ValidateWSAuth(first, f.jwtMgr, user.RoleRider, user.RoleDispatcher, user.RoleAdmin)
	if err != nil {
		f.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = writeFrame(conn, websocket.TextMessage, errorFrame("authentication failed: invalid token"), wsWriteTimeout)
		return nil, false
	}
	return claims, true
}

func (f *Feed) sendSnapshot(ctx context.Context, v *viewer) error {
	active, err := f.source.ActiveSnapshot(ctx)
	if err != nil {
		return err
	}

	msg := contracts.WSActiveSessions{Type: contracts.WSTypeActiveSessions, Sessions: []contracts.WSActiveSession{}}
	for _, a := range active {
		if !v.follows(a.Session.EmployeeID) {
			continue
		}
		entry := contracts.WSActiveSession{Session: contracts.NewSessionView(a.Session)}
		if a.LastFix != nil {
			fv := contracts.NewFixView(a.LastFix)
			entry.LastFix = &fv
		}
		msg.Sessions = append(msg.Sessions, entry)
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !v.enqueue(frame) {
		f.hub.prune(ctx, v, "send buffer full")
	}
	return nil
}

func (f *Feed) readLoop(ctx context.Context, v *viewer) {
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Error(ctx, "ws_unexpected_close", "Viewer connection closed unexpectedly", err,
					map[string]any{"viewer_id": v.id})
			} else {
				f.logger.Info(ctx, "ws_connection_closed", "Viewer connection closed", map[string]any{"viewer_id": v.id})
			}
			return
		}
		_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))

		if reply := f.handleMessage(v, payload); reply != nil {
			if !v.enqueue(reply) {
				f.hub.prune(ctx, v, "send buffer full")
				return
			}
		}
	}
}

// handleMessage applies one inbound frame and returns the reply for the sender.
func (f *Feed) handleMessage(v *viewer, payload []byte) []byte {
	var msg contracts.WSInbound
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errorFrame("bad json")
	}
	employeeID := strings.TrimSpace(msg.EmployeeID)

	switch msg.Type {
	case contracts.WSTypeSubscribe:
		if employeeID != "" && !v.allowed(employeeID) {
			return errorFrame("riders may only follow themselves")
		}
		v.subscribe(employeeID)
	case contracts.WSTypeUnsubscribe:
		v.unsubscribe(employeeID)
	default:
		return errorFrame("unknown message type")
	}

	ack, err := json.Marshal(v.subscriptions())
	if err != nil {
		return errorFrame("internal error")
	}
	return ack
}

func errorFrame(message string) []byte {
	b, _ := json.Marshal(contracts.WSError{Type: contracts.WSTypeError, Message: message})
	return b
}
