package handler

import (
	"net/http"

	"github.com/go-api-assets/internal/application/asset"
	"github.com/go-api-assets/internal/domain"
	"github.com/go-api-assets/internal/pkg/id"
	"github.com/go-chi/chi/v5"
)

// AssetHandler serves the asset verification endpoints.
type AssetHandler struct {
	svc asset.Service
}

func NewAssetHandler(svc asset.Service) *AssetHandler { return &AssetHandler{svc: svc} }

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateAsset(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AssetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	submitID := chi.URLParam(r, "submitId")
	if !id.Valid(submitID) {
		writeError(w, http.StatusBadRequest, "invalid submit id")
		return
	}
	var req domain.VerifyAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyAsset(r.Context(), submitID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimId")
	if !id.Valid(claimID) {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}
	view, err := h.svc.GetAsset(r.Context(), claimID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
