package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ----- Handler: GET /health -----

// handleHealth pings storage and reports 503 while it is unreachable.
func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		Status  string `json:"status"`
		Storage string `json:"storage"`
	}
	status, body := http.StatusOK, resp{Status: "ok", Storage: "ok"}

	if handler.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := handler.health.Ping(ctx); err != nil {
			handler.logger.Error(handler.withReqID(ctx, r), "health_check_failed", "Storage ping failed", err, nil)
			status, body = http.StatusServiceUnavailable, resp{Status: "degraded", Storage: "unreachable"}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
