package endpoints

import (
	"net/http"
	"os"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/server"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
)

type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// RegisterStatusEndpoints registers the status and metrics endpoints
func RegisterStatusEndpoints(s *server.Server) {
	s.Router.HandleFunc("/status", handleStatus(s.Health)).Methods("GET")
	s.Router.Handle("/metrics", s.Metrics.Handler()).Methods("GET")
}

func handleStatus(health store.HealthStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("LICENSING_VERSION")
		if version == "" {
			version = "0.1.0"
		}

		if health != nil {
			if err := health.CheckConnectivity(r.Context()); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, StatusResponse{
					Status:  "error",
					Version: version,
					Error:   "database connectivity check failed",
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok", Version: version})
	}
}
