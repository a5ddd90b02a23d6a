package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/search"
)

// maxTopK caps the requested number of direct matches, matching the HTTP API.
const maxTopK = 50

// SearchNotesInput is the input schema for the search_notes tool.
type SearchNotesInput struct {
	Query        string   `json:"query" jsonschema:"The search query, in natural language"`
	TopK         int      `json:"topK,omitempty" jsonschema:"Maximum number of direct matches (default 5, max 50)"`
	EntityType   string   `json:"entityType,omitempty" jsonschema:"Entity type to filter on, e.g. client or locatie"`
	EntityValues []string `json:"entityValues,omitempty" jsonschema:"Canonical entity values of that type the notes must be linked to"`
	NoExpand     bool     `json:"noExpand,omitempty" jsonschema:"Disable relation expansion and return direct matches only"`
}

// AskInput is the input schema for the ask_knowledge_base tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to answer from the team's notes"`
	TopK     int    `json:"topK,omitempty" jsonschema:"Maximum number of sources to consider (default 5, max 50)"`
}

// SaveNoteInput is the input schema for the save_note tool.
type SaveNoteInput struct {
	Title   string   `json:"title" jsonschema:"Note title"`
	Content string   `json:"content" jsonschema:"Note content, Markdown or plain text"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Tags to attach; suggested tags are merged in"`
	Status  string   `json:"status,omitempty" jsonschema:"Lifecycle status: draft, published or archived (default draft)"`
	Author  string   `json:"author,omitempty" jsonschema:"Author name"`
}

// noteMatch is one search result in a tool response.
type noteMatch struct {
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

type searchNotesOutput struct {
	Query       string      `json:"query"`
	ResultCount int         `json:"result_count"`
	Results     []noteMatch `json:"results"`
}

type askOutput struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Sources     string `json:"sources"`
	ResultCount int    `json:"result_count"`
}

type saveNoteOutput struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Status  string   `json:"status"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// SearchNotes handles the search_notes MCP tool call.
func (s *Server) SearchNotes(ctx context.Context, _ *mcp.CallToolRequest, in SearchNotesInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return errorResult("query is required"), nil, nil
	}

	opts := []search.Option{search.WithTopK(min(in.TopK, maxTopK))}
	if in.EntityType != "" {
		opts = append(opts, search.WithEntityFilter(in.EntityType, in.EntityValues...))
	}
	if in.NoExpand {
		opts = append(opts, search.WithoutExpansion())
	}

	matches, err := s.searcher.Search(ctx, query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("searching notes: %w", err)
	}

	out := searchNotesOutput{
		Query:       query,
		ResultCount: len(matches),
		Results:     make([]noteMatch, len(matches)),
	}
	for i, m := range matches {
		out.Results[i] = noteMatch{
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

	return dataToMCP(out), nil, nil
}

// AskKnowledgeBase handles the ask_knowledge_base MCP tool call.
func (s *Server) AskKnowledgeBase(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return errorResult("question is required"), nil, nil
	}

	matches, err := s.searcher.Search(ctx, question, search.WithTopK(min(in.TopK, maxTopK)))
	if err != nil {
		return nil, nil, fmt.Errorf("searching notes: %w", err)
	}
	if len(matches) == 0 {
		return dataToMCP(askOutput{Question: question}), nil, nil
	}

	res, err := s.answerer.Answer(ctx, question, matches)
	if err != nil {
		return nil, nil, fmt.Errorf("generating answer: %w", err)
	}

	return dataToMCP(askOutput{
		Question:    question,
		Answer:      res.Answer,
		Sources:     res.Context.Sources,
		ResultCount: len(res.Matches),
	}), nil, nil
}

// SaveNote handles the save_note MCP tool call. Enrichment failure degrades
// to saving the note un-enriched; only store failures abort.
func (s *Server) SaveNote(ctx context.Context, _ *mcp.CallToolRequest, in SaveNoteInput) (*mcp.CallToolResult, any, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return errorResult("title is required"), nil, nil
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return errorResult("content is required"), nil, nil
	}

	status := note.StatusDraft
	if in.Status != "" {
		parsed, err := note.ParseStatus(in.Status)
		if err != nil {
			return errorResult("status must be draft, published or archived"), nil, nil
		}
		status = parsed
	}

	draft := note.NewNote{
		Title:   title,
		Content: content,
		Author:  strings.TrimSpace(in.Author),
		Status:  status,
		Tags:    in.Tags,
	}

	if s.enricher != nil {
		enr, err := s.enricher.Enrich(ctx, title, content)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, nil, ctx.Err()
		case err != nil:
			s.logger.Warn("note enrichment failed", "error", err)
		default:
			draft.Summary = enr.Summary
			draft.Entities = enr.Entities
			draft.Tags = mergeTags(in.Tags, enr.Tags)
		}
	}

	created, err := s.notes.Create(ctx, draft)
	if err != nil {
		return nil, nil, fmt.Errorf("creating note: %w", err)
	}

	return dataToMCP(saveNoteOutput{
		ID:      created.Note.ID.String(),
		Title:   created.Note.Title,
		Status:  string(created.Note.Status),
		Summary: created.Note.Summary,
		Tags:    created.Note.Tags,
	}), nil, nil
}
