package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "gosweep API",
		Version:     "v1",
		Description: "Parameter-sweep batch scheduling and result processing",
		Endpoints: []endpointInfo{
			{"/api/v1/sweeps", []string{"GET", "POST"}, "Submit a sweep definition or list past sweeps"},
			{"/api/v1/sweeps/{id}", []string{"GET", "DELETE"}, "Batch status; DELETE stops the sweep and destroys its environments"},
			{"/api/v1/sweeps/{id}/runs", []string{"GET"}, "Per-run status for one sweep"},
			{"/api/v1/sweeps/{id}/runs/{runID}", []string{"GET"}, "One run's spec and status"},
			{"/api/v1/sweeps/{id}/failures", []string{"GET"}, "Failed runs with their recorded errors"},
			{"/api/v1/sweeps/{id}/results", []string{"GET"}, "Completed results in completion order"},
			{"/api/v1/sweeps/{id}/export", []string{"GET"}, "Export one result as csv, json, or html (?run=&format=)"},
			{"/api/v1/sweeps/{id}/pipeline", []string{"POST"}, "Filter, derive, and aggregate one result"},
			{"/api/v1/results/validate", []string{"POST"}, "Coerce and schema-check a raw result payload"},
			{"/api/v1/results/lookup", []string{"POST"}, "Look up a cached result by model and parameters"},
			{"/api/v1/history", []string{"GET"}, "Query the persisted result history"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
