package handler

import (
	"context"
	"net/http"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

// ----- Handlers: POST /sessions/{session_id}/completion/confirm|cancel -----

func (handler *TrackingHTTPHandler) handleConfirmCompletion(w http.ResponseWriter, r *http.Request) {
	handler.sessionCall(w, r, "failed to confirm completion", handler.svc.ConfirmCompletion)
}

func (handler *TrackingHTTPHandler) handleCancelCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	ref := ports.SessionRef{SessionID: r.PathValue("session_id"), ActorEmployeeID: who}
	if err := handler.svc.CancelCompletion(ctx, ref); err != nil {
		handler.serviceError(ctx, w, "failed to cancel completion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- Handler: GET /employees/{employee_id}/dispatch-order -----

func (handler *TrackingHTTPHandler) handleDispatchOrder(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	order, err := handler.svc.SuggestDispatchOrder(ctx, r.PathValue("employee_id"), who)
	if err != nil {
		handler.serviceError(ctx, w, "failed to suggest dispatch order", err)
		return
	}
	from := pointDTO{Latitude: order.From.Latitude, Longitude: order.From.Longitude}
	handler.jsonResponse(ctx, w, http.StatusOK, toDispatch(order.EmployeeID, from, order.Stops))
}

// ----- Handler: POST /routes/optimize -----

// handleOptimizeRoute orders caller-supplied stops without touching any session.
func (handler *TrackingHTTPHandler) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	var req optimizeRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	stops := make([]route.Stop, len(req.Stops))
	for i, s := range req.Stops {
		stops[i] = route.Stop{
			ShipmentID: s.ShipmentID,
			Position:   geo.Point{Latitude: s.Latitude, Longitude: s.Longitude},
			Address:    s.Address,
		}
	}
	from := geo.Point{Latitude: req.Current.Latitude, Longitude: req.Current.Longitude}
	handler.jsonResponse(ctx, w, http.StatusOK, toDispatch("", req.Current, route.OptimizePath(from, stops)))
}
