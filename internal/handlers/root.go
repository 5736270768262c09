package handlers

import "net/http"

// RootResponse is the service banner.
//
// swagger:model RootResponse
type RootResponse struct {
	Message           string            `json:"message"`
	IngestionEndpoint string            `json:"ingestion_endpoint"`
	Endpoints         map[string]string `json:"endpoints"`
}

// Root serves the service banner.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, RootResponse{
		Message:           "VitalSource API is running",
		IngestionEndpoint: "/api/v1/ingest",
		Endpoints: map[string]string{
			"ingest": "POST /api/v1/ingest",
			"query":  "POST /api/v1/query",
			"health": "GET /api/v1/health",
			"stats":  "GET /api/v1/stats",
		},
	})
}
