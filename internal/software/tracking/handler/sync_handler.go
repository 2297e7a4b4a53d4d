package handler

import (
	"context"
	"net/http"
	"strings"

	"rider-tracking/internal/ports"
)

// ----- Handler: POST /sync/sessions -----

func (handler *TrackingHTTPHandler) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req syncSessionRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		employeeID = who
	}
	if employeeID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	s, err := handler.svc.SyncSession(ctx, ports.SyncSessionInput{
		ID:              req.ID,
		EmployeeID:      employeeID,
		StartLatitude:   *req.StartLatitude,
		StartLongitude:  *req.StartLongitude,
		StartTime:       timeOrZero(req.StartTime),
		EndLatitude:     req.EndLatitude,
		EndLongitude:    req.EndLongitude,
		EndTime:         req.EndTime,
		Status:          req.Status,
		ShipmentID:      req.ShipmentID,
		ActorEmployeeID: who,
	})
	if err != nil {
		handler.serviceError(ctx, w, "failed to sync session", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, newSessionResponse(s))
}

// ----- Handler: POST /sync/coordinates -----

func (handler *TrackingHTTPHandler) handleSyncCoordinates(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req syncCoordinatesRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	// malformed items fail on their own; the rest are synced together
	results, inputs, positions := splitItems(req.Coordinates, who)

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	synced, err := handler.svc.SyncCoordinates(ctx, ports.SyncCoordinatesInput{
		SessionID:       req.SessionID,
		Coordinates:     inputs,
		ActorEmployeeID: who,
	})
	if err != nil {
		handler.serviceError(ctx, w, "failed to sync coordinates", err)
		return
	}
	for j, res := range synced {
		results[positions[j]] = res
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toResults(results))
}
