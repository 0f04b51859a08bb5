package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cargoplan/internal/ingest"
	"cargoplan/internal/opt"
	"cargoplan/internal/planner"
	"cargoplan/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrMalformed), errors.Is(err, planner.ErrNoOrders):
		return http.StatusBadRequest
	case errors.Is(err, opt.ErrNoFeasibleAssignment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, opt.ErrCapacityConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 100
	}
	return n
}
