package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fieldbankhq/fieldbank/internal/api"
	"github.com/fieldbankhq/fieldbank/internal/api/middleware"
	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/pagination"
	"github.com/fieldbankhq/fieldbank/internal/service"
	"github.com/go-chi/chi/v5"
)

type EntryService interface {
	RecordExtraction(ctx context.Context, input service.ExtractionInput) (*domain.Entry, bool, error)
	GetEntry(ctx context.Context, ownerID, entryID string) (*domain.Entry, error)
	ListEntries(ctx context.Context, ownerID string, kind domain.EntryKind, limit int, cursor string) (*pagination.PageResult[*domain.Entry], error)
	DeleteEntry(ctx context.Context, ownerID, entryID string) error
	PurgeKind(ctx context.Context, ownerID string, kind domain.EntryKind) (int64, error)
}

type EntryHandler struct {
	svc EntryService
}

func NewEntryHandler(svc EntryService) *EntryHandler {
	return &EntryHandler{svc: svc}
}

type CreateEntryRequest struct {
	Kind       string  `json:"kind,omitempty"`
	Group      string  `json:"group,omitempty"`
	Label      string  `json:"label"`
	Value      string  `json:"value,omitempty"`
	Payload    string  `json:"payload,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
}

type CreateEntryResponse struct {
	Entry  *EntryResponse `json:"entry,omitempty"`
	Stored bool           `json:"stored"`
}

type ListEntriesResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

type PurgeRequest struct {
	Kind string `json:"kind"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// Create records an extracted fact as an unverified candidate. A stored
// flag of false means a fresh verified answer already covers the field
// and the extraction was dropped.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Label == "" {
		api.Error(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Value == "" && req.Payload == "" {
		api.Error(w, http.StatusBadRequest, "value or payload is required")
		return
	}

	entry, stored, err := h.svc.RecordExtraction(r.Context(), service.ExtractionInput{
		OwnerID:    ownerID,
		Kind:       domain.EntryKind(req.Kind),
		Group:      req.Group,
		Label:      req.Label,
		Value:      req.Value,
		Payload:    req.Payload,
		Confidence: req.Confidence,
		Provenance: req.Provenance,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := CreateEntryResponse{Stored: stored}
	if entry != nil {
		resp.Entry = entryToResponse(entry)
	}

	status := http.StatusCreated
	if !stored {
		status = http.StatusOK
	}
	api.Success(w, status, resp)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	entry, err := h.svc.GetEntry(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	kind := domain.EntryKind(r.URL.Query().Get("kind"))
	cursor := r.URL.Query().Get("cursor")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListEntries(r.Context(), ownerID, kind, limit, cursor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entries := make([]*EntryResponse, len(page.Items))
	for i, entry := range page.Items {
		entries[i] = entryToResponse(entry)
	}

	api.Success(w, http.StatusOK, ListEntriesResponse{
		Entries: entries,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteEntry(r.Context(), ownerID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// Purge drops every entry of one kind for the owner. Used to clear
// derived data wholesale without touching confirmed answers.
func (h *EntryHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Kind == "" {
		api.Error(w, http.StatusBadRequest, "kind is required")
		return
	}

	deleted, err := h.svc.PurgeKind(r.Context(), ownerID, domain.EntryKind(req.Kind))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PurgeResponse{Deleted: deleted})
}
