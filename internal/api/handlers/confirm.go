package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/api"
	"github.com/fieldbankhq/fieldbank/internal/api/middleware"
	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/service"
)

type ConfirmationService interface {
	ConfirmField(ctx context.Context, input service.ConfirmInput) (*domain.Entry, error)
}

type ConfirmHandler struct {
	svc ConfirmationService
}

func NewConfirmHandler(svc ConfirmationService) *ConfirmHandler {
	return &ConfirmHandler{svc: svc}
}

type ConfirmRequest struct {
	FieldKey string `json:"field_key,omitempty"`
	Label    string `json:"label"`
	Value    string `json:"value"`
}

type EntryResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	Group          string  `json:"group"`
	Label          string  `json:"label"`
	Value          string  `json:"value,omitempty"`
	Payload        string  `json:"payload,omitempty"`
	Confidence     float64 `json:"confidence"`
	Verified       bool    `json:"verified"`
	LastVerifiedAt string  `json:"last_verified_at,omitempty"`
	Provenance     string  `json:"provenance,omitempty"`
	UsageCount     int64   `json:"usage_count"`
	LastUsedAt     string  `json:"last_used_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func entryToResponse(e *domain.Entry) *EntryResponse {
	resp := &EntryResponse{
		ID:         e.ID,
		Kind:       string(e.Kind),
		Group:      e.Group,
		Label:      e.Label,
		Confidence: e.Confidence,
		Verified:   e.Verified,
		Provenance: e.Provenance,
		UsageCount: e.UsageCount,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if value, ok := e.AnswerValue(); ok {
		resp.Value = value
	} else {
		resp.Payload = e.Payload
	}
	if e.LastVerifiedAt != nil {
		resp.LastVerifiedAt = e.LastVerifiedAt.UTC().Format(time.RFC3339)
	}
	if e.LastUsedAt != nil {
		resp.LastUsedAt = e.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Confirm records a user-approved answer as the canonical verified value
// for its field.
func (h *ConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Label == "" {
		api.Error(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Value == "" {
		api.Error(w, http.StatusBadRequest, "value is required")
		return
	}

	entry, err := h.svc.ConfirmField(r.Context(), service.ConfirmInput{
		OwnerID:  ownerID,
		FieldKey: req.FieldKey,
		Label:    req.Label,
		Value:    req.Value,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, entryToResponse(entry))
}
