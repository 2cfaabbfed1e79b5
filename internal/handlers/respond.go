package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"apex-dashboard/internal/f1data"
	"apex-dashboard/internal/jolpica"
)

// Error codes returned in the "error" field of JSON error bodies.
const (
	codeBadRequest          = "bad_request"
	codeNotFound            = "not_found"
	codeNotExportable       = "not_exportable"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeUpstreamBadResponse = "upstream_bad_response"
	codeGatewayTimeout      = "gateway_timeout"
	codeInternal            = "internal_server_error"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// classify maps an accessor error onto an HTTP status and error code so the
// dashboard can tell "nothing to show" from "could not load".
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, f1data.ErrInvalidInput):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, jolpica.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, jolpica.ErrParse):
		return http.StatusBadGateway, codeUpstreamBadResponse
	case errors.Is(err, jolpica.ErrNetwork):
		return http.StatusBadGateway, codeUpstreamUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, codeGatewayTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
