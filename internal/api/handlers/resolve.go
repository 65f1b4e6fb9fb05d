package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fieldbankhq/fieldbank/internal/api"
	"github.com/fieldbankhq/fieldbank/internal/api/middleware"
	"github.com/fieldbankhq/fieldbank/internal/domain"
)

type ResolverService interface {
	ResolveField(ctx context.Context, ownerID, label string) (domain.Resolution, error)
	RecordUsage(ctx context.Context, ownerID, entryID string)
}

type ResolveHandler struct {
	svc ResolverService
}

func NewResolveHandler(svc ResolverService) *ResolveHandler {
	return &ResolveHandler{svc: svc}
}

type ResolveRequest struct {
	Label string `json:"label"`
}

type ResolveResponse struct {
	Status  string `json:"status"`
	Stage   string `json:"stage"`
	Value   string `json:"value,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

type UsageFeedbackRequest struct {
	EntryID string `json:"entry_id"`
}

// Resolve answers one form field label for the authenticated owner.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Label == "" {
		api.Error(w, http.StatusBadRequest, "label is required")
		return
	}

	res, err := h.svc.ResolveField(r.Context(), ownerID, req.Label)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ResolveResponse{
		Status:  string(res.Status),
		Stage:   res.Stage,
		Value:   res.Value,
		EntryID: res.EntryID,
	})
}

// UsageFeedback records that a resolved value was actually placed into a
// form. Always returns 200 once the request parses; usage tracking is
// best-effort.
func (h *ResolveHandler) UsageFeedback(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UsageFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EntryID == "" {
		api.Error(w, http.StatusBadRequest, "entry_id is required")
		return
	}

	h.svc.RecordUsage(r.Context(), ownerID, req.EntryID)

	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}
