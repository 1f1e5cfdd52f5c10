package snapshots

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/docstore"
)

type pricingStatusRequest struct {
	Status    models.PricingStatus `json:"status"`
	LastError string               `json:"lastError"`
}

// RegisterHandlers mounts the snapshot endpoints on mux.
func (s Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /snapshots/latest", s.handleLatest)
	mux.HandleFunc("POST /snapshots/next-pending", s.handleNextPending)
	mux.HandleFunc("POST /snapshots/{id}/pricing-status", s.handlePricingStatus)
}

func (s Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product")
	if productID == "" {
		http.Error(w, "missing product query parameter", http.StatusBadRequest)
		return
	}
	snapshot, err := s.LatestByProduct(r.Context(), productID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load latest snapshot",
			"product_id", productID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		http.Error(w, "no snapshot for product", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s Service) handleNextPending(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.NextPending(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to claim pending snapshot", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s Service) handlePricingStatus(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("id")
	var req pricingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := s.SetPricingStatus(r.Context(), snapshotID, req.Status, req.LastError)
	if errors.Is(err, docstore.ErrNotFound) {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
