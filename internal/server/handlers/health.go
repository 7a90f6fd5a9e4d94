package handlers

import (
	"net/http"
)

// HandleHealth reports that the HTTP service is alive and responding.
//
//	GET /health -> 200 OK
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
