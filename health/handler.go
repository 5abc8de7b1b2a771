package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregate of monitor as JSON. The response is 503
// when the aggregate is unhealthy and 200 otherwise.
func Handler(system string, monitor *Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.AggregateHealth(system)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
