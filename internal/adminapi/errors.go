package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/oneshotengine"
)

// errorPayload is the admin API's JSON error body, independent of the
// control protocol's ErrorPayload — this surface speaks plain HTTP, not
// the request/response envelope.
type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorPayload{Error: message})
}

// statusForError maps an engine/control error to the HTTP status the
// external surface owns, per the error-kind classification: validation and
// compile rejections are client errors, missing sessions are 404,
// admission/capacity limits are 503, everything else is a 500.
func statusForError(err error) int {
	var compileErr *graph.CompileError
	switch {
	case errors.As(err, &compileErr):
		return http.StatusBadRequest
	case errors.Is(err, dynamicengine.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, dynamicengine.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, dynamicengine.ErrAtCapacity), errors.Is(err, oneshotengine.ErrAtCapacity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
