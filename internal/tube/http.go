package tube

import (
	"encoding/json"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"ClassPresenter/internal/logger"
)

// LogRequests is router middleware recording method, path, status and duration.
func LogRequests(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			log.Debug("handled", "method", r.Method, "url", r.URL.String(), "status", m.Code, "bytes", m.Written, "duration", m.Duration)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
