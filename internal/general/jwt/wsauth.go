package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"rider-tracking/internal/domain/user"
)

// ErrBadAuthMsg means the first live-feed frame was not {"type":"auth","token":"Bearer <jwt>"}.
var ErrBadAuthMsg = errors.New("invalid auth message")

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ValidateWSAuth authenticates a live-feed viewer from its first frame.
func ValidateWSAuth(frame []byte, mgr *Manager, allowedRoles ...user.Role) (*Claims, error) {
	var msg authFrame
	if err := json.Unmarshal(frame, &msg); err != nil || !strings.EqualFold(strings.TrimSpace(msg.Type), "auth") {
		return nil, ErrBadAuthMsg
	}
	return mgr.VerifyBearer(msg.Token, allowedRoles...)
}
