package handler

import (
	"context"
	"net/http"

	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/ports"
)

// ----- Handler: POST /coordinates -----

func (handler *TrackingHTTPHandler) handleRecordCoordinate(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req coordinateRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}
	in, err := req.toInput(who)
	if err != nil {
		handler.serviceError(ctx, w, "invalid coordinate", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.RecordCoordinate(ctx, in)
	if err != nil {
		handler.serviceError(ctx, w, "failed to record coordinate", err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	handler.jsonResponse(ctx, w, status, coordinateResponse{Record: contracts.NewFixView(res.Fix), Duplicate: res.Duplicate})
}

// ----- Handler: POST /coordinates/batch -----

// handleRecordBatch answers 200 even when items fail; the outcome of each item is in results.
func (handler *TrackingHTTPHandler) handleRecordBatch(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	results, inputs, positions := splitItems(req.Coordinates, who)
	for j, res := range handler.svc.RecordBatch(ctx, inputs) {
		results[positions[j]] = res
	}

	handler.jsonResponse(ctx, w, http.StatusOK, toResults(results))
}

// ----- Handler: POST /shipment-events -----

func (handler *TrackingHTTPHandler) handleShipmentEvent(w http.ResponseWriter, r *http.Request) {
	ctx, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	var req shipmentEventRequest
	if !handler.decode(ctx, w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	ev, err := handler.svc.RecordShipmentEvent(ctx, ports.ShipmentEventInput{
		SessionID:       req.SessionID,
		ShipmentID:      req.ShipmentID,
		EventType:       req.EventType,
		Latitude:        *req.Latitude,
		Longitude:       *req.Longitude,
		Timestamp:       timeOrZero(req.Timestamp),
		ActorEmployeeID: who,
	})
	if err != nil {
		handler.serviceError(ctx, w, "failed to record shipment event", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, eventResponse{Record: contracts.NewEventView(ev)})
}
