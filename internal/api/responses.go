package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

func WriteErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads ?limit= (1..500, default 20) and ?offset= (>= 0).
// Values that are present but invalid are an error.
func ParsePagination(r *http.Request) (Pagination, error) {
	limit, err := queryInt(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return Pagination{Limit: defaultLimit}, err
	}
	offset, err := queryInt(r, "offset", 0, 0, -1)
	if err != nil {
		return Pagination{Limit: defaultLimit}, err
	}
	return Pagination{Limit: limit, Offset: offset}, nil
}

// queryInt parses an integer parameter within [lo, hi]. hi < 0 means no upper bound.
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: must be an integer", name, v)
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi < 0 {
			return def, fmt.Errorf("invalid %s %d: must be >= %d", name, n, lo)
		}
		return def, fmt.Errorf("invalid %s %d: must be between %d and %d", name, n, lo, hi)
	}
	return n, nil
}
