package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/enrich"
	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/search"
)

// Tool names as registered with clients.
const (
	toolSearchNotes = "search_notes"
	toolAsk         = "ask_knowledge_base"
	toolSaveNote    = "save_note"
)

// Searcher runs relation-aware retrieval. Implemented by *search.Searcher.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...search.Option) ([]search.Match, error)
}

// Answerer generates cited answers from matches. Implemented by
// *answer.Generator.
type Answerer interface {
	Answer(ctx context.Context, question string, matches []search.Match) (answer.Result, error)
}

// NoteCreator persists new notes. Implemented by *note.Store.
type NoteCreator interface {
	Create(ctx context.Context, draft note.NewNote) (note.Detail, error)
}

// Enricher derives summary, tags and entities for new notes. Implemented by
// *enrich.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, title, content string) (enrich.Result, error)
}

// Server wraps the MCP SDK server around the knowledge base.
type Server struct {
	mcpServer *mcp.Server
	searcher  Searcher
	answerer  Answerer
	notes     NoteCreator
	enricher  Enricher
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Logger   *slog.Logger
	Searcher Searcher
	Answerer Answerer
	Notes    NoteCreator
	Enricher Enricher // Optional: nil saves notes without enrichment
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}
	if cfg.Version == "" {
		return nil, errors.New("server version is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Notes == nil {
		return nil, errors.New("note store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		searcher:  cfg.Searcher,
		answerer:  cfg.Answerer,
		notes:     cfg.Notes,
		enricher:  cfg.Enricher,
		logger:    logger,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. This is a blocking call
// that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// registerTools registers the knowledge base tools with the MCP server.
func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[SearchNotesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", toolSearchNotes, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: toolSearchNotes,
		Description: "Search the care team's knowledge notes using semantic similarity. " +
			"Superseded notes are filtered out and related notes are pulled in through typed relations.",
		InputSchema: searchSchema,
	}, s.SearchNotes)

	askSchema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", toolAsk, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: toolAsk,
		Description: "Answer a question from the care team's knowledge notes. " +
			"Returns a Dutch answer with [n] citations plus the numbered, status-labeled source block it cites.",
		InputSchema: askSchema,
	}, s.AskKnowledgeBase)

	saveSchema, err := jsonschema.For[SaveNoteInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", toolSaveNote, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: toolSaveNote,
		Description: "Save a new knowledge note. " +
			"The note is enriched with a summary, suggested tags and extracted entities before storage.",
		InputSchema: saveSchema,
	}, s.SaveNote)

	return nil
}
