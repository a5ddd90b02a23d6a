package search

import (
	"errors"
	"strings"

	"github.com/koopa0/kennis/internal/note"
)

var (
	// ErrEmptyQuery is returned for empty or whitespace-only queries,
	// before any provider call is made.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrNoEmbedding is returned when the embedding provider produced no
	// vector for the query. The call is not retried.
	ErrNoEmbedding = errors.New("no embedding produced for query")
)

const (
	// DefaultTopK is the number of direct matches returned.
	DefaultTopK = 5

	// DefaultRelatedLimit caps expansion at related_limit × |seeds| targets.
	DefaultRelatedLimit = 3

	// entityPoolFactor widens the candidate pool when an entity filter is
	// applied, so post-filtering still has topK survivors to choose from.
	entityPoolFactor = 4
)

// Match is one search result. Direct matches carry a clamped similarity
// score; matches added by relation expansion carry a nil Score and the
// relation type through which they were reached. Every match carries its
// full relation map for context assembly.
type Match struct {
	note.Note

	Score     *float64
	Relation  note.RelationType
	Relations note.RelationMap
}

// Expanded reports whether the match was added by relation expansion
// rather than ranked by similarity.
func (m Match) Expanded() bool {
	return m.Relation != ""
}

type options struct {
	topK         int
	relatedLimit int
	entityType   string
	entityValues []string
	noExpand     bool
}

// Option configures a single Search call.
type Option func(*options)

// WithTopK sets the maximum number of direct matches.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithRelatedLimit sets the per-seed expansion budget. Zero disables
// expansion.
func WithRelatedLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.relatedLimit = n
		}
	}
}

// WithEntityFilter keeps only notes linked to the given entity type whose
// canonical values (of that type) include every requested value. Matching is
// case-insensitive. With no values, any link of the type qualifies.
func WithEntityFilter(entityType string, values ...string) Option {
	return func(o *options) {
		o.entityType = strings.TrimSpace(entityType)
		o.entityValues = values
	}
}

// WithoutExpansion disables relation expansion for this call.
func WithoutExpansion() Option {
	return func(o *options) {
		o.noExpand = true
	}
}

func defaultOptions() options {
	return options{
		topK:         DefaultTopK,
		relatedLimit: DefaultRelatedLimit,
	}
}
