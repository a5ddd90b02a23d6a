package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/search"
)

const (
	// maxQuestionLength bounds the question before any provider call.
	maxQuestionLength = 1000

	// maxAskBodyBytes caps the /ask request payload.
	maxAskBodyBytes = 64 << 10

	// maxAskTopK caps the requested number of direct matches.
	maxAskTopK = 50
)

// askHandler answers questions over the knowledge base.
type askHandler struct {
	searcher Searcher
	answerer Answerer
	logger   *slog.Logger
}

// askRequest is the POST /api/v1/ask payload.
type askRequest struct {
	Question     string   `json:"question"`
	TopK         int      `json:"topK"`
	EntityType   string   `json:"entityType"`
	EntityValues []string `json:"entityValues"`
	NoExpand     bool     `json:"noExpand"`
}

// askResponse is the data payload of a successful /ask call.
type askResponse struct {
	// Answer is the generated, cited answer. Empty when the provider
	// failed or nothing matched; matches and sources are still present.
	Answer  string      `json:"answer"`
	Sources string      `json:"sources"`
	Matches []matchItem `json:"matches"`
}

// matchItem is the JSON representation of one search match.
type matchItem struct {
	Citation  int      `json:"citation"`
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Label     string   `json:"label"`
	Score     *float64 `json:"score,omitempty"`
	Relation  string   `json:"relation,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	UpdatedAt string   `json:"updatedAt"`
}

// ask handles POST /api/v1/ask.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		WriteError(w, http.StatusBadRequest, "question_required", "question is required", h.logger)
		return
	}
	if len(question) > maxQuestionLength {
		WriteError(w, http.StatusBadRequest, "question_too_long", "question must be 1000 characters or fewer", h.logger)
		return
	}

	opts := []search.Option{
		search.WithTopK(min(req.TopK, maxAskTopK)),
	}
	if req.EntityType != "" {
		opts = append(opts, search.WithEntityFilter(req.EntityType, req.EntityValues...))
	}
	if req.NoExpand {
		opts = append(opts, search.WithoutExpansion())
	}

	matches, err := h.searcher.Search(r.Context(), question, opts...)
	if err != nil {
		h.logger.Error("searching notes", "error", err, "question_len", len(question))
		WriteError(w, http.StatusInternalServerError, "search_failed", "failed to search the knowledge base", h.logger)
		return
	}

	if len(matches) == 0 {
		WriteJSON(w, http.StatusOK, askResponse{Matches: []matchItem{}}, h.logger)
		return
	}

	res, err := h.answerer.Answer(r.Context(), question, matches)
	if err != nil {
		h.logger.Error("generating answer", "error", err)
		WriteError(w, http.StatusInternalServerError, "answer_failed", "failed to generate an answer", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, askResponse{
		Answer:  res.Answer,
		Sources: res.Context.Sources,
		Matches: toMatchItems(res.Matches, res.Context),
	}, h.logger)
}

// toMatchItems converts matches to their JSON form, resolving citation
// numbers and status labels from the rendered context.
func toMatchItems(matches []search.Match, c answer.Context) []matchItem {
	items := make([]matchItem, len(matches))
	for i, m := range matches {
		num, _ := c.Number(m.ID)
		items[i] = matchItem{
			Citation:  num,
			ID:        m.ID.String(),
			Title:     m.Title,
			Status:    string(m.Status),
			Label:     answer.StatusLabel(m.Status, m.Relations),
			Score:     m.Score,
			Relation:  string(m.Relation),
			Summary:   m.Summary,
			Tags:      m.Tags,
			UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
		}
	}
	return items
}
