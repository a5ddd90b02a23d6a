package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/kennis/internal/fetch"
	"github.com/koopa0/kennis/internal/note"
)

const (
	// maxNoteBodyBytes caps the note creation payload.
	maxNoteBodyBytes = 1 << 20

	// maxNoteListLimit caps the page size of note listings.
	maxNoteListLimit = 200
)

// noteHandler manages note creation, listing and detail.
type noteHandler struct {
	store    NoteStore
	enricher Enricher    // nil skips enrichment
	fetcher  PageFetcher // nil disables url imports
	logger   *slog.Logger
}

// createNoteRequest is the POST /api/v1/notes payload. Either content or
// url must be set; with a url the page text becomes the content and the
// page title fills an empty title.
type createNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	URL     string   `json:"url"`
	Tags    []string `json:"tags"`
	Status  string   `json:"status"`
	Author  string   `json:"author"`
}

// noteItem is the JSON representation of a note without its content.
type noteItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Summary   string   `json:"summary,omitempty"`
	Author    string   `json:"author,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// noteDetailItem extends noteItem with content, entities and relations.
type noteDetailItem struct {
	noteItem
	Content   string         `json:"content"`
	Entities  []entityItem   `json:"entities,omitempty"`
	Relations []relationItem `json:"relations,omitempty"`
}

// entityItem is the JSON representation of an entity link.
type entityItem struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Canonical string `json:"canonical"`
	Role      string `json:"role,omitempty"`
}

func toNoteItem(n note.Note) noteItem {
	return noteItem{
		ID:        n.ID.String(),
		Title:     n.Title,
		Status:    string(n.Status),
		Summary:   n.Summary,
		Author:    n.Author,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.Format(time.RFC3339),
	}
}

func toNoteDetailItem(d note.Detail, rels []note.RelationDetail) noteDetailItem {
	item := noteDetailItem{
		noteItem: toNoteItem(d.Note),
		Content:  d.Note.Content,
	}
	for _, e := range d.Entities {
		item.Entities = append(item.Entities, entityItem{
			Type:      e.Type,
			Value:     e.Value,
			Canonical: e.Canonical,
			Role:      e.Role,
		})
	}
	for _, rel := range rels {
		item.Relations = append(item.Relations, toRelationItem(rel))
	}
	return item
}

// createNote handles POST /api/v1/notes.
func (h *noteHandler) createNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBodyBytes)

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", h.logger)
		return
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)

	if rawURL := strings.TrimSpace(req.URL); rawURL != "" {
		if h.fetcher == nil {
			WriteError(w, http.StatusNotImplemented, "url_import_disabled", "url imports are not enabled", h.logger)
			return
		}
		art, err := h.fetcher.Article(r.Context(), rawURL)
		if err != nil {
			h.mapFetchError(w, rawURL, err)
			return
		}
		content = art.Text
		if title == "" {
			title = art.Title
		}
	}

	if content == "" {
		WriteError(w, http.StatusBadRequest, "content_required", "content or url is required", h.logger)
		return
	}
	if title == "" {
		WriteError(w, http.StatusBadRequest, "title_required", "title is required", h.logger)
		return
	}

	status := note.StatusDraft
	if req.Status != "" {
		parsed, err := note.ParseStatus(req.Status)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_status", "status must be draft, published or archived", h.logger)
			return
		}
		status = parsed
	}

	draft := note.NewNote{
		Title:   title,
		Content: content,
		Author:  strings.TrimSpace(req.Author),
		Status:  status,
		Tags:    req.Tags,
	}

	if h.enricher != nil {
		enr, err := h.enricher.Enrich(r.Context(), title, content)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			h.logger.Warn("note enrichment failed", "error", err)
		} else {
			draft.Summary = enr.Summary
			draft.Entities = enr.Entities
			draft.Tags = mergeTags(req.Tags, enr.Tags)
		}
	}

	created, err := h.store.Create(r.Context(), draft)
	if err != nil {
		h.logger.Error("creating note", "error", err, "title", title)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create note", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, toNoteDetailItem(created, nil), h.logger)
}

// listNotes handles GET /api/v1/notes.
func (h *noteHandler) listNotes(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", 50), maxNoteListLimit)

	notes, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing notes", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list notes", h.logger)
		return
	}

	items := make([]noteItem, len(notes))
	for i, n := range notes {
		items[i] = toNoteItem(n)
	}
	WriteJSON(w, http.StatusOK, items, h.logger)
}

// getNote handles GET /api/v1/notes/{id}.
func (h *noteHandler) getNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid note ID", h.logger)
		return
	}

	d, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "note not found", h.logger)
			return
		}
		h.logger.Error("getting note", "error", err, "id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get note", h.logger)
		return
	}

	rels, err := h.store.ListRelationsForNote(r.Context(), id)
	if err != nil {
		h.logger.Error("listing note relations", "error", err, "id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get note relations", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toNoteDetailItem(d, rels), h.logger)
}

// mapFetchError translates fetch failures into API errors. Blocked
// addresses, pages without extractable text and non-HTML responses are
// client errors; everything else is an upstream failure.
func (h *noteHandler) mapFetchError(w http.ResponseWriter, rawURL string, err error) {
	switch {
	case errors.Is(err, fetch.ErrBlockedTarget):
		WriteError(w, http.StatusUnprocessableEntity, "blocked_target", "url targets a non-public address", h.logger)
	case errors.Is(err, fetch.ErrUnsupportedContent):
		WriteError(w, http.StatusUnsupportedMediaType, "unsupported_content", "url does not serve an importable page", h.logger)
	case errors.Is(err, fetch.ErrNoContent):
		WriteError(w, http.StatusUnprocessableEntity, "no_content", "no text could be extracted from the url", h.logger)
	default:
		h.logger.Warn("fetching url for note", "error", err, "url", rawURL)
		WriteError(w, http.StatusBadGateway, "fetch_failed", "failed to fetch the url", h.logger)
	}
}

// mergeTags appends suggested tags to the caller's tags, deduplicated
// case-insensitively, caller's order first.
func mergeTags(manual, suggested []string) []string {
	merged := make([]string, 0, len(manual)+len(suggested))
	seen := make(map[string]bool, len(manual)+len(suggested))
	for _, lst := range [][]string{manual, suggested} {
		for _, t := range lst {
			t = strings.TrimSpace(t)
			if t == "" || seen[strings.ToLower(t)] {
				continue
			}
			seen[strings.ToLower(t)] = true
			merged = append(merged, t)
		}
	}
	return merged
}
