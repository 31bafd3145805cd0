package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"governor-hq/ganymede/pkg/audit"
	"governor-hq/ganymede/pkg/entity"
	"governor-hq/ganymede/pkg/policy"
	"governor-hq/ganymede/pkg/rollout"
)

// errorResponse is the wire shape of all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps typed domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		unknownEntity   *entity.UnknownEntityError
		illegal         *entity.IllegalTransitionError
		unknownPolicy   *policy.UnknownPolicyError
		invalidPolicy   *policy.InvalidPolicyDefinitionError
		invalidEvent    *rollout.InvalidEventError
		unknownDeferred *rollout.UnknownDeferredActionError
	)

	switch {
	case errors.Is(err, audit.ErrLogHalted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unknownEntity),
		errors.As(err, &unknownPolicy),
		errors.As(err, &unknownDeferred):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &illegal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidPolicy), errors.As(err, &invalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
