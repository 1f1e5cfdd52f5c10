package scrapeworker

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type enqueueRequest struct {
	ProductID string             `json:"productId"`
	URLs      []string           `json:"urls"`
	FxRates   map[string]float64 `json:"fxRates"`
	Priority  int                `json:"priority"`
}

type enqueueResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// RegisterHandlers mounts the job intake endpoint.
func (q Queue) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		jobID, err := q.Enqueue(r.Context(), req.ProductID, req.URLs, req.FxRates, req.Priority)
		if err != nil {
			slog.WarnContext(r.Context(), "enqueue rejected", "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(enqueueResponse{JobID: jobID, Status: "queued"})
	})
}
