package handler

import (
	"context"
	"net/http"
	"strings"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/ports"
)

// ----- Handler: POST /sessions -----

func (handler *TrackingHTTPHandler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	// riders may leave employee_id out and start for themselves
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

	s, err := handler.svc.StartSession(ctx, ports.StartSessionInput{
		SessionID:       req.SessionID,
		EmployeeID:      employeeID,
		Latitude:        *req.StartLatitude,
		Longitude:       *req.StartLongitude,
		ShipmentID:      req.ShipmentID,
		StartTime:       timeOrZero(req.StartTime),
		ActorEmployeeID: who,
	})
	if err != nil {
		handler.serviceError(ctx, w, "failed to start session", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, newSessionResponse(s))
}

// ----- Handler: POST /sessions/{session_id}/stop -----

func (handler *TrackingHTTPHandler) handleStopSession(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req stopSessionRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	s, err := handler.svc.StopSession(ctx, ports.StopSessionInput{
		SessionID:       r.PathValue("session_id"),
		Latitude:        *req.EndLatitude,
		Longitude:       *req.EndLongitude,
		EndTime:         timeOrZero(req.EndTime),
		Reason:          "manual",
		ActorEmployeeID: who,
	})
	if err != nil {
		handler.serviceError(ctx, w, "failed to stop session", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, newSessionResponse(s))
}

// ----- Handlers: POST /sessions/{session_id}/pause|resume -----

func (handler *TrackingHTTPHandler) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	handler.sessionCall(w, r, "failed to pause session", handler.svc.PauseSession)
}

func (handler *TrackingHTTPHandler) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	handler.sessionCall(w, r, "failed to resume session", handler.svc.ResumeSession)
}

// ----- Handler: GET /sessions/{session_id} -----

func (handler *TrackingHTTPHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	handler.sessionCall(w, r, "failed to load session", handler.svc.GetSession)
}

// sessionCall runs a body-less call keyed by the session in the path.
func (handler *TrackingHTTPHandler) sessionCall(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	call func(context.Context, ports.SessionRef) (*route.Session, error),
) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	s, err := call(ctx, ports.SessionRef{SessionID: r.PathValue("session_id"), ActorEmployeeID: who})
	if err != nil {
		handler.serviceError(ctx, w, failure, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, newSessionResponse(s))
}

// ----- Handler: GET /sessions/{session_id}/coordinates -----

func (handler *TrackingHTTPHandler) handleListCoordinates(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	sessionID := r.PathValue("session_id")
	fixes, err := handler.svc.ListCoordinates(ctx, ports.SessionRef{SessionID: sessionID, ActorEmployeeID: who})
	if err != nil {
		handler.serviceError(ctx, w, "failed to list coordinates", err)
		return
	}

	out := coordinatesResponse{SessionID: sessionID, Coordinates: make([]contracts.FixView, len(fixes))}
	for i := range fixes {
		out.Coordinates[i] = contracts.NewFixView(&fixes[i])
	}
	handler.jsonResponse(ctx, w, http.StatusOK, out)
}

// ----- Handler: GET /sessions/{session_id}/summary -----

func (handler *TrackingHTTPHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	sum, err := handler.svc.Summary(ctx, ports.SessionRef{SessionID: r.PathValue("session_id"), ActorEmployeeID: who})
	if err != nil {
		handler.serviceError(ctx, w, "failed to summarize session", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, sum)
}

// ----- Handler: GET /employees/{employee_id}/active-session -----

// handleActiveSession answers {"session": null} when the employee has nothing open.
func (handler *TrackingHTTPHandler) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	s, err := handler.svc.GetActiveSession(ctx, r.PathValue("employee_id"), who)
	if err != nil {
		handler.serviceError(ctx, w, "failed to load active session", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, newSessionResponse(s))
}
