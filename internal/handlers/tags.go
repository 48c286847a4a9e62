package handlers

import (
	"net/http"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TagHandler handles tag-related requests
type TagHandler struct {
	tags     database.TagRepositoryInterface
	streamer *Streamer
	logger   *zap.Logger
}

// NewTagHandler creates a new tag handler. Live subscriptions are disabled
// when streamer is nil.
func NewTagHandler(tags database.TagRepositoryInterface, streamer *Streamer, logger *zap.Logger) *TagHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagHandler{tags: tags, streamer: streamer, logger: logger}
}

// RegisterRoutes registers tag routes on a router with the /tags prefix
func (h *TagHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTags).Methods("GET")
	r.HandleFunc("", h.CreateTag).Methods("POST")
	if h.streamer != nil {
		r.HandleFunc("/subscribe", h.SubscribeTags).Methods("GET")
	}
	r.HandleFunc("/{id}", h.UpdateTag).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTag).Methods("DELETE")
}

// ListTags lists the owner's tags, newest first
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	tags, err := h.tags.List(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	respondJSON(w, http.StatusOK, tags)
}

// CreateTag creates a tag
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	var input models.TagInput
	if err := decodeJSON(r, &input); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	tag, err := h.tags.Create(r.Context(), ownerID, input)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

// UpdateTag applies a partial update and returns the updated tag
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	tagID := mux.Vars(r)["id"]
	var patch models.TagPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	if err := h.tags.Update(ctx, ownerID, tagID, patch); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	tag, err := h.tags.Get(ctx, ownerID, tagID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

// DeleteTag deletes a tag and removes it from every log that carries it
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	if err := h.tags.Delete(r.Context(), ownerID, mux.Vars(r)["id"]); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeTags streams the owner's tag list over a WebSocket
func (h *TagHandler) SubscribeTags(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	stream(h.streamer, w, r, "tags", func(onChange func([]*models.Tag, error)) (func(), error) {
		return h.tags.Subscribe(ownerID, onChange)
	})
}
