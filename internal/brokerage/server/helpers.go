package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradingflow/server/internal/brokerage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func pathParam(r *http.Request, key string) string {
	if m, ok := r.Context().Value(paramsKey).(map[string]string); ok {
		return m[key]
	}
	return ""
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// writeCoordinatorError maps the error taxonomy onto HTTP statuses:
// validation and credential faults are the client's, unknown brokers are
// 404, exchange failures are a bad gateway, anything else is internal.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	var (
		validationErr *brokerage.ValidationError
		credentialErr *brokerage.CredentialError
		upstreamErr   *brokerage.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &credentialErr):
		writeError(w, http.StatusBadRequest, credentialErr.Reason)
	case errors.Is(err, brokerage.ErrBrokerNotFound):
		writeError(w, http.StatusNotFound, "broker not found")
	case errors.As(err, &upstreamErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
