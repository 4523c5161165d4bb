package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// errorStatus maps scheduling errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidTimeFormat):
		return http.StatusBadRequest, "invalid_time_format"
	case errors.Is(err, scheduling.ErrInvalidDuration):
		return http.StatusBadRequest, "invalid_duration"
	case errors.Is(err, scheduling.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, scheduling.ErrMalformedRule):
		return http.StatusBadRequest, "malformed_rule"
	case errors.Is(err, scheduling.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, scheduling.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, scheduling.ErrRuleNotFound):
		return http.StatusNotFound, "rule_not_found"
	case errors.Is(err, scheduling.ErrSlotConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, scheduling.ErrStaffBusy):
		return http.StatusConflict, "staff_busy"
	case errors.Is(err, scheduling.ErrRangeTooLong):
		return http.StatusUnprocessableEntity, "range_too_long"
	case errors.Is(err, scheduling.ErrRepositoryUnavailable):
		return http.StatusServiceUnavailable, "repository_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	details := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		details = "internal server error"
	case errors.Is(err, scheduling.ErrSlotConflict):
		details = scheduling.MsgSlotConflict
	}
	writeError(w, status, code, details)
}

// Query helpers

func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", scheduling.ErrInvalidInput, key)
	}
	return n, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	n, err := queryInt64(r, key, int64(def))
	return int(n), err
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", scheduling.ErrInvalidInput, key)
	}
	return b, nil
}

func pathInt64(r *http.Request, key string) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", scheduling.ErrInvalidInput, key)
	}
	return n, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: could not parse JSON body: %v", scheduling.ErrInvalidInput, err)
	}
	return nil
}
