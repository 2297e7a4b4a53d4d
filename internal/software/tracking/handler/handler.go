package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/domain/user"
	"rider-tracking/internal/general/jwt"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxBodyBytes   = 1 << 20 // 1 MiB
	serviceTimeout = 10 * time.Second
)

// TrackingHTTPHandler adapts HTTP requests to the TrackingService.
type TrackingHTTPHandler struct {
	svc      ports.TrackingService
	logger   *logger.Logger
	auth     *jwt.Manager
	feed     http.HandlerFunc
	health   ports.HealthChecker
	validate *validator.Validate
}

// NewTrackingHTTPHandler wires an HTTP handler around the TrackingService. feed serves the live
// feed upgrade and may be nil.
func NewTrackingHTTPHandler(
	svc ports.TrackingService,
	logger *logger.Logger,
	auth *jwt.Manager,
	feed http.HandlerFunc,
	health ports.HealthChecker,
) *TrackingHTTPHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &TrackingHTTPHandler{svc: svc, logger: logger, auth: auth, feed: feed, health: health, validate: v}
}

// RegisterRoutes mounts the tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	anyone := jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleDispatcher, user.RoleAdmin)
	staff := jwt.AuthMiddlewareFunc(handler.auth, user.RoleDispatcher, user.RoleAdmin)

	mux.HandleFunc("POST /sessions", anyone(handler.handleStartSession))
	mux.HandleFunc("GET /sessions/{session_id}", anyone(handler.handleGetSession))
	mux.HandleFunc("POST /sessions/{session_id}/stop", anyone(handler.handleStopSession))
	mux.HandleFunc("POST /sessions/{session_id}/pause", anyone(handler.handlePauseSession))
	mux.HandleFunc("POST /sessions/{session_id}/resume", anyone(handler.handleResumeSession))
	mux.HandleFunc("GET /sessions/{session_id}/coordinates", anyone(handler.handleListCoordinates))
	mux.HandleFunc("GET /sessions/{session_id}/summary", anyone(handler.handleSummary))
	mux.HandleFunc("POST /sessions/{session_id}/completion/confirm", anyone(handler.handleConfirmCompletion))
	mux.HandleFunc("POST /sessions/{session_id}/completion/cancel", anyone(handler.handleCancelCompletion))

	mux.HandleFunc("POST /coordinates", anyone(handler.handleRecordCoordinate))
	mux.HandleFunc("POST /coordinates/batch", anyone(handler.handleRecordBatch))
	mux.HandleFunc("POST /shipment-events", anyone(handler.handleShipmentEvent))

	mux.HandleFunc("POST /sync/sessions", anyone(handler.handleSyncSession))
	mux.HandleFunc("POST /sync/coordinates", anyone(handler.handleSyncCoordinates))

	mux.HandleFunc("GET /employees/{employee_id}/active-session", anyone(handler.handleActiveSession))
	mux.HandleFunc("GET /employees/{employee_id}/dispatch-order", anyone(handler.handleDispatchOrder))
	mux.HandleFunc("POST /routes/optimize", staff(handler.handleOptimizeRoute))

	// the live feed authenticates with its first frame
	if handler.feed != nil {
		mux.HandleFunc("GET /ws/tracking", handler.feed)
	}
	mux.HandleFunc("GET /health", handler.handleHealth)
}

// ----- general helpers -----

// actor returns the employee id a rider is restricted to; staff roles are unrestricted.
func actor(r *http.Request) (string, error) {
	claims := jwt.RequireClaims(r)
	if claims == nil {
		return "", errors.New("no claims")
	}
	return claims.ActorEmployeeID(), nil
}

// begin derives the request context and the caller restriction. It writes the error response
// itself and reports false when the request must not proceed.
func (handler *TrackingHTTPHandler) begin(w http.ResponseWriter, r *http.Request) (context.Context, string, bool) {
	ctx := handler.withReqID(r.Context(), r)
	who, err := actor(r)
	if err != nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", err)
		return ctx, "", false
	}
	return ctx, who, true
}

// decode reads a JSON body strictly and runs the validator over it.
func (handler *TrackingHTTPHandler) decode(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return false
	}

	if err := handler.validate.Struct(dst); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		parts = append(parts, fmt.Sprintf("%s: failed %q", ns, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// serviceError maps the route error taxonomy to a status code.
func (handler *TrackingHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	handler.httpError(ctx, w, statusFor(err), errorText(msg, err), err)
}

func statusFor(err error) int {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		return http.StatusInternalServerError
	case errors.Is(err, route.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, route.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, route.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, route.ErrConflict), errors.Is(err, route.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorText exposes domain errors to the caller and hides everything else behind msg.
func errorText(msg string, err error) string {
	if statusFor(err) >= 500 {
		return msg
	}
	return err.Error()
}

// itemError renders a per-item failure of a batch.
func itemError(err error) string {
	if statusFor(err) >= 500 {
		return "internal error"
	}
	return err.Error()
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
	case status == http.StatusBadRequest:
		action = "validation_failed"
	case status == http.StatusUnsupportedMediaType:
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, map[string]any{"status": status})

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
