package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/kennis/internal/note"
)

const (
	// maxRelationBodyBytes caps the relation creation payload.
	maxRelationBodyBytes = 4 << 10

	// maxRelationListLimit caps the page size of relation listings.
	maxRelationListLimit = 200

	// maxSuggestTopK caps the number of relation suggestions.
	maxSuggestTopK = 20
)

// relationHandler manages typed relations between notes.
type relationHandler struct {
	store  RelationStore
	logger *slog.Logger
}

// createRelationRequest is the POST /api/v1/relations payload.
type createRelationRequest struct {
	SourceID   string   `json:"sourceId"`
	TargetID   string   `json:"targetId"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
}

// relationItem is the JSON representation of a relation. Endpoint titles
// and statuses are present when the relation was read with its notes.
type relationItem struct {
	ID           string   `json:"id"`
	SourceID     string   `json:"sourceId"`
	TargetID     string   `json:"targetId"`
	Type         string   `json:"type"`
	Confidence   *float64 `json:"confidence,omitempty"`
	SourceTitle  string   `json:"sourceTitle,omitempty"`
	SourceStatus string   `json:"sourceStatus,omitempty"`
	TargetTitle  string   `json:"targetTitle,omitempty"`
	TargetStatus string   `json:"targetStatus,omitempty"`
	CreatedAt    string   `json:"createdAt"`
}

// suggestionItem is the JSON representation of a relation suggestion.
type suggestionItem struct {
	NoteID     string  `json:"noteId"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

func toRelationItem(d note.RelationDetail) relationItem {
	item := toBareRelationItem(d.Relation)
	item.SourceTitle = d.SourceTitle
	item.SourceStatus = string(d.SourceStatus)
	item.TargetTitle = d.TargetTitle
	item.TargetStatus = string(d.TargetStatus)
	return item
}

func toBareRelationItem(rel note.Relation) relationItem {
	return relationItem{
		ID:         rel.ID.String(),
		SourceID:   rel.SourceID.String(),
		TargetID:   rel.TargetID.String(),
		Type:       string(rel.Type),
		Confidence: rel.Confidence,
		CreatedAt:  rel.CreatedAt.Format(time.RFC3339),
	}
}

// createRelation handles POST /api/v1/relations.
func (h *relationHandler) createRelation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRelationBodyBytes)

	var req createRelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", h.logger)
		return
	}

	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_source", "invalid source note ID", h.logger)
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_target", "invalid target note ID", h.logger)
		return
	}
	rtype, err := note.ParseRelationType(req.Type)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_type",
			"type must be supersedes, supports, contradicts, related or duplicate", h.logger)
		return
	}

	rel, err := h.store.CreateRelation(r.Context(), sourceID, targetID, rtype, req.Confidence)
	if err != nil {
		h.mapRelationError(w, err, "failed to create relation")
		return
	}

	WriteJSON(w, http.StatusCreated, toBareRelationItem(rel), h.logger)
}

// listRelations handles GET /api/v1/relations. With a note_id parameter the
// listing is scoped to relations touching that note, in either direction.
func (h *relationHandler) listRelations(w http.ResponseWriter, r *http.Request) {
	var (
		rels []note.RelationDetail
		err  error
	)

	if raw := r.URL.Query().Get("note_id"); raw != "" {
		noteID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			WriteError(w, http.StatusBadRequest, "invalid_note_id", "invalid note ID", h.logger)
			return
		}
		rels, err = h.store.ListRelationsForNote(r.Context(), noteID)
	} else {
		limit := min(parseIntParam(r, "limit", 50), maxRelationListLimit)
		rels, err = h.store.ListRelations(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("listing relations", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list relations", h.logger)
		return
	}

	items := make([]relationItem, len(rels))
	for i, rel := range rels {
		items[i] = toRelationItem(rel)
	}
	WriteJSON(w, http.StatusOK, items, h.logger)
}

// deleteRelation handles DELETE /api/v1/relations/{id}.
func (h *relationHandler) deleteRelation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid relation ID", h.logger)
		return
	}

	if err := h.store.DeleteRelation(r.Context(), id); err != nil {
		if errors.Is(err, note.ErrRelationNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "relation not found", h.logger)
			return
		}
		h.logger.Error("deleting relation", "error", err, "id", id)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete relation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// suggestRelations handles GET /api/v1/suggest/relations?note_id=...
// Optional top_k and threshold parameters override the store defaults.
func (h *relationHandler) suggestRelations(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("note_id")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "missing_note_id", "query parameter 'note_id' is required", h.logger)
		return
	}
	noteID, err := uuid.Parse(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_note_id", "invalid note ID", h.logger)
		return
	}

	topK := min(parseIntParam(r, "top_k", 0), maxSuggestTopK)
	threshold := parseFloatParam(r, "threshold", 0)

	suggestions, err := h.store.SuggestRelations(r.Context(), noteID, threshold, topK)
	if err != nil {
		switch {
		case errors.Is(err, note.ErrNotFound):
			WriteError(w, http.StatusNotFound, "not_found", "note not found", h.logger)
		case errors.Is(err, note.ErrNoEmbedding):
			WriteError(w, http.StatusUnprocessableEntity, "no_embedding", "note has no embedding to suggest from", h.logger)
		default:
			h.logger.Error("suggesting relations", "error", err, "note_id", noteID)
			WriteError(w, http.StatusInternalServerError, "suggest_failed", "failed to suggest relations", h.logger)
		}
		return
	}

	items := make([]suggestionItem, len(suggestions))
	for i, s := range suggestions {
		items[i] = suggestionItem{
			NoteID:     s.NoteID.String(),
			Title:      s.Title,
			Similarity: s.Similarity,
		}
	}
	WriteJSON(w, http.StatusOK, items, h.logger)
}

// mapRelationError translates store errors from relation writes.
func (h *relationHandler) mapRelationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, note.ErrSelfRelation):
		WriteError(w, http.StatusBadRequest, "self_relation", "a note cannot relate to itself", h.logger)
	case errors.Is(err, note.ErrDuplicateRelation):
		WriteError(w, http.StatusConflict, "duplicate_relation", "a relation already exists for this note pair", h.logger)
	case errors.Is(err, note.ErrUnknownRelationType):
		WriteError(w, http.StatusBadRequest, "invalid_type", "unknown relation type", h.logger)
	case errors.Is(err, note.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "source or target note not found", h.logger)
	default:
		h.logger.Error("writing relation", "error", err)
		WriteError(w, http.StatusInternalServerError, "relation_failed", fallback, h.logger)
	}
}
