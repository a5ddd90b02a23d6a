package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/enrich"
	"github.com/koopa0/kennis/internal/fetch"
	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/search"
)

// NoteStore is the note-facing slice of the store. Implemented by
// *note.Store.
type NoteStore interface {
	Create(ctx context.Context, draft note.NewNote) (note.Detail, error)
	Get(ctx context.Context, id uuid.UUID) (note.Detail, error)
	List(ctx context.Context, limit int) ([]note.Note, error)
	ListRelationsForNote(ctx context.Context, noteID uuid.UUID) ([]note.RelationDetail, error)
}

// RelationStore is the relation-facing slice of the store. Implemented by
// *note.Store.
type RelationStore interface {
	CreateRelation(ctx context.Context, sourceID, targetID uuid.UUID, rtype note.RelationType, confidence *float64) (note.Relation, error)
	DeleteRelation(ctx context.Context, id uuid.UUID) error
	ListRelations(ctx context.Context, limit int) ([]note.RelationDetail, error)
	ListRelationsForNote(ctx context.Context, noteID uuid.UUID) ([]note.RelationDetail, error)
	SuggestRelations(ctx context.Context, noteID uuid.UUID, threshold float64, topK int) ([]note.RelationSuggestion, error)
}

// Searcher runs relation-aware retrieval. Implemented by *search.Searcher.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...search.Option) ([]search.Match, error)
}

// Answerer generates cited answers from matches. Implemented by
// *answer.Generator.
type Answerer interface {
	Answer(ctx context.Context, question string, matches []search.Match) (answer.Result, error)
}

// Enricher derives summary, tags and entities for new notes. Implemented by
// *enrich.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, title, content string) (enrich.Result, error)
}

// PageFetcher imports web articles. Implemented by *fetch.Fetcher.
type PageFetcher interface {
	Article(ctx context.Context, rawURL string) (fetch.Article, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Notes       NoteStore     // Required
	Relations   RelationStore // Required
	Searcher    Searcher      // Required
	Answerer    Answerer      // Required
	Enricher    Enricher      // Optional: nil creates notes without enrichment
	Fetcher     PageFetcher   // Optional: nil disables url imports
	Pool        *pgxpool.Pool // Optional: nil skips the database probe in /readyz
	CORSOrigins []string      // Allowed origins for CORS
	IsDev       bool          // Disables HSTS (plain HTTP development)
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Notes == nil {
		return nil, errors.New("note store is required")
	}
	if cfg.Relations == nil {
		return nil, errors.New("relation store is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &askHandler{
		searcher: cfg.Searcher,
		answerer: cfg.Answerer,
		logger:   logger,
	}
	nh := &noteHandler{
		store:    cfg.Notes,
		enricher: cfg.Enricher,
		fetcher:  cfg.Fetcher,
		logger:   logger,
	}
	rh := &relationHandler{
		store:  cfg.Relations,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/ask", ah.ask)

	mux.HandleFunc("POST /api/v1/notes", nh.createNote)
	mux.HandleFunc("GET /api/v1/notes", nh.listNotes)
	mux.HandleFunc("GET /api/v1/notes/{id}", nh.getNote)

	mux.HandleFunc("POST /api/v1/relations", rh.createRelation)
	mux.HandleFunc("GET /api/v1/relations", rh.listRelations)
	mux.HandleFunc("DELETE /api/v1/relations/{id}", rh.deleteRelation)
	mux.HandleFunc("GET /api/v1/suggest/relations", rh.suggestRelations)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", healthz)
	topMux.Handle("GET /readyz", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
