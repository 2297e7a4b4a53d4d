package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type startSessionRequest struct {
	SessionID      string     `json:"session_id" validate:"omitempty,max=64"`
	EmployeeID     string     `json:"employee_id" validate:"omitempty,max=64"`
	StartLatitude  *float64   `json:"start_latitude" validate:"required"`
	StartLongitude *float64   `json:"start_longitude" validate:"required"`
	ShipmentID     string     `json:"shipment_id,omitempty" validate:"omitempty,max=64"`
	StartTime      *time.Time `json:"start_time,omitempty"`
}

type stopSessionRequest struct {
	EndLatitude  *float64   `json:"end_latitude" validate:"required"`
	EndLongitude *float64   `json:"end_longitude" validate:"required"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// coordinateRequest is not run through the validator inside batches so that one bad item
// cannot reject its siblings; decodeItem and toInput check it instead.
type coordinateRequest struct {
	SessionID string     `json:"session_id"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type batchRequest struct {
	Coordinates []json.RawMessage `json:"coordinates" validate:"required,min=1,max=1000"`
}

type shipmentEventRequest struct {
	SessionID  string     `json:"session_id" validate:"required"`
	ShipmentID string     `json:"shipment_id" validate:"required,max=64"`
	EventType  string     `json:"event_type" validate:"required"`
	Latitude   *float64   `json:"latitude" validate:"required"`
	Longitude  *float64   `json:"longitude" validate:"required"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type syncSessionRequest struct {
	ID             string     `json:"id" validate:"required,max=64"`
	EmployeeID     string     `json:"employee_id" validate:"omitempty,max=64"`
	StartLatitude  *float64   `json:"start_latitude" validate:"required"`
	StartLongitude *float64   `json:"start_longitude" validate:"required"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndLatitude    *float64   `json:"end_latitude,omitempty" validate:"required_with=EndLongitude"`
	EndLongitude   *float64   `json:"end_longitude,omitempty" validate:"required_with=EndLatitude"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         string     `json:"status,omitempty" validate:"omitempty,oneof=active paused completed"`
	ShipmentID     string     `json:"shipment_id,omitempty" validate:"omitempty,max=64"`
}

type syncCoordinatesRequest struct {
	SessionID   string            `json:"session_id" validate:"required"`
	Coordinates []json.RawMessage `json:"coordinates" validate:"max=5000"`
}

type pointDTO struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

type stopDTO struct {
	ShipmentID string  `json:"shipment_id" validate:"required"`
	Latitude   float64 `json:"latitude" validate:"latitude"`
	Longitude  float64 `json:"longitude" validate:"longitude"`
	Address    string  `json:"address,omitempty"`
}

type optimizeRequest struct {
	Current pointDTO  `json:"current"`
	Stops   []stopDTO `json:"stops" validate:"max=500,dive"`
}

// --- Response DTOs ---

type sessionResponse struct {
	Session *contracts.SessionView `json:"session"`
}

type coordinateResponse struct {
	Record    contracts.FixView `json:"record"`
	Duplicate bool              `json:"duplicate"`
}

type itemResult struct {
	Success   bool               `json:"success"`
	Record    *contracts.FixView `json:"record,omitempty"`
	Duplicate bool               `json:"duplicate,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type resultsResponse struct {
	Results []itemResult `json:"results"`
}

type eventResponse struct {
	Record contracts.EventView `json:"record"`
}

type coordinatesResponse struct {
	SessionID   string              `json:"session_id"`
	Coordinates []contracts.FixView `json:"coordinates"`
}

type orderedStop struct {
	Sequence   int     `json:"sequence"`
	ShipmentID string  `json:"shipment_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address,omitempty"`
}

type dispatchResponse struct {
	EmployeeID string        `json:"employee_id,omitempty"`
	From       pointDTO      `json:"from"`
	Stops      []orderedStop `json:"stops"`
}

func newSessionResponse(s *route.Session) sessionResponse {
	if s == nil {
		return sessionResponse{}
	}
	v := contracts.NewSessionView(s)
	return sessionResponse{Session: &v}
}

// toInput converts one wire coordinate; a missing position is an item-level validation error.
func (c coordinateRequest) toInput(actor string) (ports.CoordinateInput, error) {
	if c.Latitude == nil {
		return ports.CoordinateInput{}, route.Invalid("latitude", "is required")
	}
	if c.Longitude == nil {
		return ports.CoordinateInput{}, route.Invalid("longitude", "is required")
	}
	in := ports.CoordinateInput{
		SessionID:       c.SessionID,
		Latitude:        *c.Latitude,
		Longitude:       *c.Longitude,
		Accuracy:        c.Accuracy,
		Speed:           c.Speed,
		ActorEmployeeID: actor,
	}
	if c.Timestamp != nil {
		in.Timestamp = *c.Timestamp
	}
	return in, nil
}

// decodeItem strictly decodes one batch element. A malformed element fails alone.
func decodeItem(raw json.RawMessage) (coordinateRequest, error) {
	var c coordinateRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return coordinateRequest{}, route.Invalid("coordinate", "is malformed: "+err.Error())
	}
	return c, nil
}

// splitItems turns raw batch elements into service inputs. Elements that fail to decode or
// lack a position get their result filled in here; positions maps inputs back to elements.
func splitItems(raws []json.RawMessage, actor string) (results []ports.CoordinateResult, inputs []ports.CoordinateInput, positions []int) {
	results = make([]ports.CoordinateResult, len(raws))
	inputs = make([]ports.CoordinateInput, 0, len(raws))
	positions = make([]int, 0, len(raws))
	for i, raw := range raws {
		c, err := decodeItem(raw)
		if err == nil {
			var in ports.CoordinateInput
			if in, err = c.toInput(actor); err == nil {
				inputs = append(inputs, in)
				positions = append(positions, i)
				continue
			}
		}
		results[i] = ports.CoordinateResult{Err: err}
	}
	return results, inputs, positions
}

func toResults(results []ports.CoordinateResult) resultsResponse {
	out := make([]itemResult, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = itemResult{Error: itemError(r.Err)}
			continue
		}
		v := contracts.NewFixView(r.Fix)
		out[i] = itemResult{Success: true, Record: &v, Duplicate: r.Duplicate}
	}
	return resultsResponse{Results: out}
}

func toDispatch(employeeID string, from pointDTO, stops []route.Stop) dispatchResponse {
	out := dispatchResponse{EmployeeID: employeeID, From: from, Stops: make([]orderedStop, len(stops))}
	for i, s := range stops {
		out.Stops[i] = orderedStop{
			Sequence:   i + 1,
			ShipmentID: s.ShipmentID,
			Latitude:   s.Position.Latitude,
			Longitude:  s.Position.Longitude,
			Address:    s.Address,
		}
	}
	return out
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
