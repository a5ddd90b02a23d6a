// Package search implements relation-aware similarity search over the note
// store: vector candidates with supersession filtering, optional entity
// filtering, one-hop relation expansion and per-note relation maps.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/kennis/internal/note"
)

// Source is the slice of the note store the searcher reads from.
type Source interface {
	// SearchCandidates returns published, non-superseded notes ordered by
	// ascending embedding distance, scores clamped to [0,1].
	SearchCandidates(ctx context.Context, vec []float32, limit int) ([]note.Candidate, error)

	// GetBulk fetches notes by id; ids without a row are absent from the map.
	GetBulk(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]note.Note, error)

	// RelationsBySource returns outbound relations of the given notes in
	// stable order (creation time, then id).
	RelationsBySource(ctx context.Context, ids []uuid.UUID) ([]note.Relation, error)

	// RelationMaps returns the per-note relation map, including synthetic
	// superseded_by entries, for every given id.
	RelationMaps(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]note.RelationMap, error)

	// EntitiesForNotes returns the canonical entity values of the given type
	// linked to each note.
	EntitiesForNotes(ctx context.Context, ids []uuid.UUID, entityType string) (map[uuid.UUID][]string, error)
}

// Embedder produces the query vector. Implemented by embed.Cache.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher answers natural-language queries with scored notes and their
// relation context.
//
// Searcher is safe for concurrent use by multiple goroutines.
type Searcher struct {
	source   Source
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Searcher.
func New(source Source, embedder Embedder, logger *slog.Logger) (*Searcher, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{source: source, embedder: embedder, logger: logger}, nil
}

// Search embeds the query, ranks candidates by vector similarity and expands
// the result one hop along soft relations. Direct matches come first, ordered
// by descending score; expanded matches follow in discovery order with a nil
// score. Every match carries its relation map.
//
// An empty index or a filter that eliminates every candidate yields an empty
// slice and a nil error.
func (s *Searcher) Search(ctx context.Context, query string, opts ...Option) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrNoEmbedding
	}

	// Entity filtering happens after the vector query, so widen the pool to
	// keep topK survivors reachable.
	pool := o.topK
	if o.entityType != "" {
		pool = max(o.topK*entityPoolFactor, o.topK)
	}

	candidates, err := s.source.SearchCandidates(ctx, vec, pool)
	if err != nil {
		return nil, fmt.Errorf("searching candidates: %w", err)
	}

	if o.entityType != "" {
		candidates, err = s.filterByEntity(ctx, candidates, o.entityType, o.entityValues)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) > o.topK {
		candidates = candidates[:o.topK]
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(candidates))
	seeds := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		score := c.Score
		matches = append(matches, Match{Note: c.Note, Score: &score})
		seeds = append(seeds, c.Note.ID)
	}

	if !o.noExpand && o.relatedLimit > 0 {
		expanded, err := s.expand(ctx, seeds, o.relatedLimit)
		if err != nil {
			return nil, err
		}
		matches = append(matches, expanded...)
	}

	ids := make([]uuid.UUID, len(matches))
	for i := range matches {
		ids[i] = matches[i].ID
	}
	relMaps, err := s.source.RelationMaps(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading relation maps: %w", err)
	}
	for i := range matches {
		matches[i].Relations = relMaps[matches[i].ID]
	}

	s.logger.Debug("search complete",
		"direct", len(seeds),
		"expanded", len(matches)-len(seeds),
		"top_k", o.topK)
	return matches, nil
}

// filterByEntity keeps candidates linked to at least one entity of the given
// type whose canonical values contain every requested value.
func (s *Searcher) filterByEntity(ctx context.Context, candidates []note.Candidate, entityType string, values []string) ([]note.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Note.ID
	}
	linked, err := s.source.EntitiesForNotes(ctx, ids, entityType)
	if err != nil {
		return nil, fmt.Errorf("loading entity links: %w", err)
	}

	want := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			want = append(want, v)
		}
	}

	kept := candidates[:0]
	for _, c := range candidates {
		have := linked[c.Note.ID]
		if len(have) == 0 {
			continue
		}
		if !containsAll(have, want) {
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

func containsAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range want {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// expand walks one hop from the seed set along soft relations. Seeds are
// visited in rank order, each seed's relations in creation order; the first
// relation type encountered per target wins; targets already in the seed set
// are skipped. The number of fetched targets is capped at limit × |seeds|.
// Targets missing from the bulk fetch are skipped with a warning. Expansion
// never recurses.
func (s *Searcher) expand(ctx context.Context, seeds []uuid.UUID, limit int) ([]Match, error) {
	relations, err := s.source.RelationsBySource(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("loading outbound relations: %w", err)
	}

	bySource := make(map[uuid.UUID][]note.Relation, len(seeds))
	for _, r := range relations {
		bySource[r.SourceID] = append(bySource[r.SourceID], r)
	}

	seedSet := make(map[uuid.UUID]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	budget := limit * len(seeds)
	type pick struct {
		id  uuid.UUID
		typ note.RelationType
	}
	picks := make([]pick, 0, budget)
	seen := make(map[uuid.UUID]struct{}, budget)
collect:
	for _, seed := range seeds {
		for _, r := range bySource[seed] {
			if len(picks) >= budget {
				break collect
			}
			if !r.Type.Soft() {
				continue
			}
			if _, ok := seedSet[r.TargetID]; ok {
				continue
			}
			if _, ok := seen[r.TargetID]; ok {
				continue
			}
			seen[r.TargetID] = struct{}{}
			picks = append(picks, pick{id: r.TargetID, typ: r.Type})
		}
	}
	if len(picks) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(picks))
	for i, p := range picks {
		ids[i] = p.id
	}
	notes, err := s.source.GetBulk(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching related notes: %w", err)
	}

	matches := make([]Match, 0, len(picks))
	for _, p := range picks {
		n, ok := notes[p.id]
		if !ok {
			s.logger.Warn("related note missing, skipped", "note_id", p.id, "relation", p.typ)
			continue
		}
		matches = append(matches, Match{Note: n, Relation: p.typ})
	}
	return matches, nil
}
