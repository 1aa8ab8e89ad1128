package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/memory"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is the encoding error kind (invalid_range, busy, ...), when known.
	Kind string `json:"kind,omitempty"`
	// CRFs and Sizes list what a failed search tried.
	CRFs        []int   `json:"crfs,omitempty"`
	Sizes       []int64 `json:"sizes,omitempty"`
	TargetBytes int64   `json:"targetBytes,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged; the status line is already gone by then.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatusCode writes v with an explicit status code.
func writeJSONStatusCode(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatusCode(w, statusCode, ErrorResponse{Error: message})
}

// writeEncodeError maps an encoding error kind to a status code.
func writeEncodeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: encoding.KindName(err)}
	var encErr *encoding.Error
	if errors.As(err, &encErr) {
		resp.CRFs = encErr.CRFs
		resp.Sizes = encErr.Sizes
		resp.TargetBytes = encErr.TargetBytes
	}
	writeJSONStatusCode(w, errorStatus(err), resp)
}

// errorStatus: 400 invalid input, 409 busy, 422 the encode ran but could
// not produce a result, 503 encoder or memory unavailable, 500 otherwise.
func errorStatus(err error) int {
	if errors.Is(err, memory.ErrMemoryPressure) {
		return http.StatusServiceUnavailable
	}
	switch encoding.KindOf(err) {
	case encoding.ErrInvalidRange, encoding.ErrInvalidTarget:
		return http.StatusBadRequest
	case encoding.ErrBusy:
		return http.StatusConflict
	case encoding.ErrSearchExhausted, encoding.ErrPaletteMissing:
		return http.StatusUnprocessableEntity
	case encoding.ErrEncoderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseFloat returns def for an empty value.
func parseFloat(value string, def float64) (float64, error) {
	if value == "" {
		return def, nil
	}
	return strconv.ParseFloat(value, 64)
}

// parseInt returns def for an empty value.
func parseInt(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
