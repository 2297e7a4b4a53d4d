package websocket

import (
	"sort"
	"strings"
	"sync"

	"rider-tracking/internal/domain/user"
	"rider-tracking/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// viewer is one live feed connection and its subscription set.
//
// In follow-all mode the viewer receives every rider except the excluded ones, including riders
// whose sessions start after the viewer connected. Otherwise it receives only the riders in subs.
type viewer struct {
	id         string
	employeeID string
	role       user.Role
	conn       *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	followAll bool
	subs      map[string]struct{}
	excluded  map[string]struct{}
}

func newViewer(id, employeeID string, role user.Role, conn *websocket.Conn, buffer int) *viewer {
	v := &viewer{
		id:         id,
		employeeID: employeeID,
		role:       role,
		conn:       conn,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
		subs:       make(map[string]struct{}),
		excluded:   make(map[string]struct{}),
	}
	v.followAll = !role.IsRider()
	if role.IsRider() {
		v.subs[employeeID] = struct{}{}
	}
	return v
}

// enqueue never blocks; false means the viewer fell behind.
func (v *viewer) enqueue(frame []byte) bool {
	select {
	case <-v.done:
		return true
	default:
	}
	select {
	case v.send <- frame:
		return true
	default:
		return false
	}
}

func (v *viewer) close() {
	v.closeOnce.Do(func() { close(v.done) })
}

func (v *viewer) follows(employeeID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.followAll {
		_, skip := v.excluded[employeeID]
		return !skip
	}
	_, ok := v.subs[employeeID]
	return ok
}

// allowed reports whether the viewer may watch employeeID at all.
func (v *viewer) allowed(employeeID string) bool {
	return v.role.CanObserveOthers() || employeeID == v.employeeID
}

// only replaces the subscription set with an explicit list.
func (v *viewer) only(employeeIDs []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.followAll = false
	v.subs = make(map[string]struct{}, len(employeeIDs))
	v.excluded = make(map[string]struct{})
	for _, id := range employeeIDs {
		v.subs[id] = struct{}{}
	}
}

// subscribe adds employeeID, or returns to the default mode when employeeID is empty.
func (v *viewer) subscribe(employeeID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if employeeID == "" {
		v.subs = make(map[string]struct{})
		v.excluded = make(map[string]struct{})
		if v.role.CanObserveOthers() {
			v.followAll = true
		} else {
			v.subs[v.employeeID] = struct{}{}
		}
		return
	}
	if v.followAll {
		delete(v.excluded, employeeID)
		return
	}
	v.subs[employeeID] = struct{}{}
}

// unsubscribe removes employeeID, or everything when employeeID is empty.
func (v *viewer) unsubscribe(employeeID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if employeeID == "" {
		v.followAll = false
		v.subs = make(map[string]struct{})
		v.excluded = make(map[string]struct{})
		return
	}
	if v.followAll {
		v.excluded[employeeID] = struct{}{}
		return
	}
	delete(v.subs, employeeID)
}

func (v *viewer) subscriptions() contracts.WSSubscriptions {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return contracts.WSSubscriptions{
		Type:      contracts.WSTypeSubscriptions,
		FollowAll: v.followAll,
		Employees: sortedKeys(v.subs),
		Excluded:  sortedKeys(v.excluded),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// parseEmployees splits the ?employees=E1,E2 connect parameter.
func parseEmployees(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
