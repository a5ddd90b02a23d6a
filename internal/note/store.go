package note

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Embedder produces embedding vectors for text. Implemented by embed.Cache.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

const (
	// DefaultSuggestThreshold is the minimum similarity for relation suggestions.
	DefaultSuggestThreshold = 0.4

	// DefaultSuggestTopK is the number of relation suggestions considered.
	DefaultSuggestTopK = 5

	// embedTimeout bounds a single embedding call.
	embedTimeout = 30 * time.Second
)

// noteCols is the standard SELECT column list for scanNotes.
const noteCols = `n.id, n.title, n.content, n.summary, n.author, n.status, n.created_at, n.updated_at`

// relationCols is the standard SELECT column list for scanRelations.
const relationCols = `r.id, r.source_note_id, r.target_note_id, r.relation_type, r.confidence, r.created_at, r.updated_at`

// Store manages notes backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates a note Store.
func NewStore(pool *pgxpool.Pool, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// Create inserts a note with its embedding, tags, entity links and outbound
// relations in one transaction. Targets of supersedes relations are archived
// in the same transaction.
//
// The embedding is generated before the transaction begins so no connection
// is held across the network call.
func (s *Store) Create(ctx context.Context, draft NewNote) (Detail, error) {
	if err := validateDraft(&draft); err != nil {
		return Detail{}, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(embedCtx, draft.Title+"\n\n"+draft.Content)
	if err != nil {
		return Detail{}, fmt.Errorf("embedding note: %w", err)
	}
	if len(vec) == 0 {
		return Detail{}, fmt.Errorf("empty embedding for note %q", draft.Title)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	noteID := uuid.New()
	now := time.Now()

	if _, err := tx.Exec(ctx,
		`INSERT INTO notes (id, title, content, summary, author, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		noteID, draft.Title, draft.Content, draft.Summary, draft.Author, draft.Status, now,
	); err != nil {
		return Detail{}, fmt.Errorf("inserting note: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO embeddings (note_id, model, dim, embedding) VALUES ($1, $2, $3, $4)`,
		noteID, s.embedder.Model(), len(vec), pgvector.NewVector(vec),
	); err != nil {
		return Detail{}, fmt.Errorf("inserting embedding: %w", err)
	}

	tagNames, err := s.ensureTags(ctx, tx, noteID, draft.Tags)
	if err != nil {
		return Detail{}, err
	}

	entities, err := s.ensureEntities(ctx, tx, noteID, draft.Entities)
	if err != nil {
		return Detail{}, err
	}

	relations := make([]Relation, 0, len(draft.Relations))
	for _, nr := range draft.Relations {
		confidence := nr.Confidence
		if confidence == nil {
			one := 1.0
			confidence = &one
		}
		rel, relErr := s.insertRelation(ctx, tx, noteID, nr.TargetID, nr.Type, confidence)
		if relErr != nil {
			return Detail{}, relErr
		}
		relations = append(relations, rel)
	}

	if err := tx.Commit(ctx); err != nil {
		return Detail{}, fmt.Errorf("committing note transaction: %w", err)
	}

	s.logger.Debug("created note",
		"id", noteID, "title", draft.Title, "status", draft.Status,
		"tags", len(tagNames), "entities", len(entities), "relations", len(relations))

	return Detail{
		Note: Note{
			ID:        noteID,
			Title:     draft.Title,
			Content:   draft.Content,
			Summary:   draft.Summary,
			Author:    draft.Author,
			Status:    draft.Status,
			Tags:      tagNames,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Relations: relations,
		Entities:  entities,
	}, nil
}

// validateDraft checks required fields and normalizes defaults for Create.
func validateDraft(draft *NewNote) error {
	if strings.TrimSpace(draft.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(draft.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if draft.Status == "" {
		draft.Status = StatusDraft
	}
	if !draft.Status.Valid() {
		return fmt.Errorf("invalid status %q", draft.Status)
	}
	for i := range draft.Relations {
		if !draft.Relations[i].Type.Valid() {
			return fmt.Errorf("relation %d: %w: %q", i, ErrUnknownRelationType, draft.Relations[i].Type)
		}
		if c := draft.Relations[i].Confidence; c != nil {
			clamped := clamp01(*c)
			draft.Relations[i].Confidence = &clamped
		}
	}
	for i := range draft.Entities {
		if strings.TrimSpace(draft.Entities[i].Type) == "" || strings.TrimSpace(draft.Entities[i].Value) == "" {
			return fmt.Errorf("entity %d: type and value are required", i)
		}
	}
	return nil
}

// ensureTags gets or creates each tag case-insensitively and links it to the
// note. Returns the stored tag names in input order.
func (s *Store) ensureTags(ctx context.Context, q querier, noteID uuid.UUID, names []string) ([]string, error) {
	var stored []string
	seen := make(map[string]bool, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
		var tagID uuid.UUID
		var storedName string
		err := q.QueryRow(ctx,
			`INSERT INTO tags (id, name) VALUES ($1, $2)
			 ON CONFLICT (lower(name)) DO UPDATE SET name = tags.name
			 RETURNING id, name`,
			uuid.New(), name,
		).Scan(&tagID, &storedName)
		if err != nil {
			return nil, fmt.Errorf("ensuring tag %q: %w", name, err)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			noteID, tagID,
		); err != nil {
			return nil, fmt.Errorf("linking tag %q: %w", name, err)
		}

		stored = append(stored, storedName)
	}

	return stored, nil
}

// ensureEntities gets or creates each entity by (type, canonical) and links it
// to the note with its role.
func (s *Store) ensureEntities(ctx context.Context, q querier, noteID uuid.UUID, refs []EntityRef) ([]Entity, error) {
	entities := make([]Entity, 0, len(refs))

	for _, ref := range refs {
		canonical := strings.TrimSpace(ref.Canonical)
		if canonical == "" {
			canonical = strings.TrimSpace(ref.Value)
		}

		var entityID uuid.UUID
		err := q.QueryRow(ctx,
			`INSERT INTO entities (id, entity_type, value, canonical_value)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (entity_type, lower(canonical_value)) DO UPDATE SET updated_at = now()
			 RETURNING id`,
			uuid.New(), ref.Type, ref.Value, canonical,
		).Scan(&entityID)
		if err != nil {
			return nil, fmt.Errorf("ensuring entity %s/%s: %w", ref.Type, canonical, err)
		}

		role := strings.TrimSpace(ref.Role)
		if _, err := q.Exec(ctx,
			`INSERT INTO note_entities (note_id, entity_id, role) VALUES ($1, $2, NULLIF($3, ''))
			 ON CONFLICT DO NOTHING`,
			noteID, entityID, role,
		); err != nil {
			return nil, fmt.Errorf("linking entity %s/%s: %w", ref.Type, canonical, err)
		}

		entities = append(entities, Entity{
			ID:        entityID,
			Type:      ref.Type,
			Value:     ref.Value,
			Canonical: canonical,
			Role:      role,
		})
	}

	return entities, nil
}

// insertRelation validates and inserts one relation using the provided querier.
// A supersedes relation archives the target in the same transaction.
func (s *Store) insertRelation(ctx context.Context, q querier, sourceID, targetID uuid.UUID,
	rtype RelationType, confidence *float64) (Relation, error) {

	if sourceID == targetID {
		return Relation{}, ErrSelfRelation
	}
	if !rtype.Valid() {
		return Relation{}, fmt.Errorf("%w: %q", ErrUnknownRelationType, rtype)
	}

	var targetExists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, targetID,
	).Scan(&targetExists); err != nil {
		return Relation{}, fmt.Errorf("checking target note: %w", err)
	}
	if !targetExists {
		return Relation{}, fmt.Errorf("target note %s: %w", targetID, ErrNotFound)
	}

	var pairExists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM note_relations WHERE source_note_id = $1 AND target_note_id = $2)`,
		sourceID, targetID,
	).Scan(&pairExists); err != nil {
		return Relation{}, fmt.Errorf("checking existing relation: %w", err)
	}
	if pairExists {
		return Relation{}, fmt.Errorf("%s -> %s: %w", sourceID, targetID, ErrDuplicateRelation)
	}

	rel := Relation{
		ID:         uuid.New(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       rtype,
		Confidence: confidence,
	}

	err := q.QueryRow(ctx,
		`INSERT INTO note_relations (id, source_note_id, target_note_id, relation_type, confidence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, rel.Confidence,
	).Scan(&rel.CreatedAt, &rel.UpdatedAt)
	if err != nil {
		// Unique violation backstop for the race between the pair check and insert.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Relation{}, fmt.Errorf("%s -> %s: %w", sourceID, targetID, ErrDuplicateRelation)
		}
		return Relation{}, fmt.Errorf("inserting relation: %w", err)
	}

	if rtype == RelationSupersedes {
		if _, err := q.Exec(ctx,
			`UPDATE notes SET status = 'archived', updated_at = now()
			 WHERE id = $1 AND status <> 'archived'`,
			targetID,
		); err != nil {
			return Relation{}, fmt.Errorf("archiving superseded note: %w", err)
		}
		s.logger.Debug("archived superseded note", "id", targetID, "superseded_by", sourceID)
	}

	return rel, nil
}

// CreateRelation inserts a relation between two existing notes.
// Self-relations, duplicate pairs, unknown types and missing notes are
// rejected before the insert. Supersedes archives the target in-transaction.
func (s *Store) CreateRelation(ctx context.Context, sourceID, targetID uuid.UUID,
	rtype RelationType, confidence *float64) (Relation, error) {

	if confidence != nil {
		clamped := clamp01(*confidence)
		confidence = &clamped
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Relation{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var sourceExists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, sourceID,
	).Scan(&sourceExists); err != nil {
		return Relation{}, fmt.Errorf("checking source note: %w", err)
	}
	if !sourceExists {
		return Relation{}, fmt.Errorf("source note %s: %w", sourceID, ErrNotFound)
	}

	rel, err := s.insertRelation(ctx, tx, sourceID, targetID, rtype, confidence)
	if err != nil {
		return Relation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Relation{}, fmt.Errorf("committing relation transaction: %w", err)
	}

	return rel, nil
}

// DeleteRelation removes a relation by id.
// Returns ErrRelationNotFound if it doesn't exist.
func (s *Store) DeleteRelation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM note_relations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting relation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRelationNotFound
	}
	return nil
}

// UpdateRelationType changes the type of an existing relation.
// Changing to supersedes archives the target, keeping the archive invariant.
func (s *Store) UpdateRelationType(ctx context.Context, id uuid.UUID, rtype RelationType) (Relation, error) {
	if !rtype.Valid() {
		return Relation{}, fmt.Errorf("%w: %q", ErrUnknownRelationType, rtype)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Relation{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var rel Relation
	err = tx.QueryRow(ctx,
		`UPDATE note_relations SET relation_type = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, source_note_id, target_note_id, relation_type, confidence, created_at, updated_at`,
		id, rtype,
	).Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type, &rel.Confidence, &rel.CreatedAt, &rel.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Relation{}, ErrRelationNotFound
	}
	if err != nil {
		return Relation{}, fmt.Errorf("updating relation %s: %w", id, err)
	}

	if rtype == RelationSupersedes {
		if _, err := tx.Exec(ctx,
			`UPDATE notes SET status = 'archived', updated_at = now()
			 WHERE id = $1 AND status <> 'archived'`,
			rel.TargetID,
		); err != nil {
			return Relation{}, fmt.Errorf("archiving superseded note: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Relation{}, fmt.Errorf("committing relation transaction: %w", err)
	}

	return rel, nil
}

// Get returns a note with its outbound relations and entity links.
// Returns ErrNotFound if the note doesn't exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	n, err := scanNote(s.pool.QueryRow(ctx,
		`SELECT `+noteCols+` FROM notes n WHERE n.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, fmt.Errorf("getting note %s: %w", id, err)
	}

	tags, err := s.tagsForNotes(ctx, []uuid.UUID{id})
	if err != nil {
		return Detail{}, err
	}
	n.Tags = tags[id]

	relations, err := s.RelationsBySource(ctx, []uuid.UUID{id})
	if err != nil {
		return Detail{}, err
	}

	entities, err := s.entitiesForNote(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	return Detail{Note: n, Relations: relations, Entities: entities}, nil
}

// GetBulk returns the notes for the given ids, keyed by id.
// Missing ids are simply absent from the result.
func (s *Store) GetBulk(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Note, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]Note{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+noteCols+` FROM notes n WHERE n.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting notes: %w", err)
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}

	if err := s.hydrateTags(ctx, notes); err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]Note, len(notes))
	for _, n := range notes {
		result[n.ID] = *n
	}
	return result, nil
}

// List returns the most recently updated notes.
func (s *Store) List(ctx context.Context, limit int) ([]Note, error) {
	limit = normalizeLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT `+noteCols+` FROM notes n ORDER BY n.updated_at DESC, n.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}

	if err := s.hydrateTags(ctx, notes); err != nil {
		return nil, err
	}

	result := make([]Note, len(notes))
	for i, n := range notes {
		result[i] = *n
	}
	return result, nil
}

// ListOptions returns compact note references whose title matches term,
// most recently updated first. An empty term matches everything.
func (s *Store) ListOptions(ctx context.Context, term string, limit int) ([]Option, error) {
	limit = normalizeLimit(limit)

	pattern := ""
	if term != "" {
		pattern = "%" + escapeLike(term) + "%"
	}

	rows, err := s.pool.Query(ctx,
		`SELECT n.id, n.title, n.status, n.updated_at
		 FROM notes n
		 WHERE ($1 = '' OR n.title ILIKE $1)
		 ORDER BY n.updated_at DESC, n.id
		 LIMIT $2`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("listing note options: %w", err)
	}
	defer rows.Close()

	var options []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Title, &o.Status, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning note option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading note options: %w", err)
	}
	return options, nil
}

// ListRelationsForNote returns all relations where the note is source or
// target, with endpoint titles and statuses, newest first.
func (s *Store) ListRelationsForNote(ctx context.Context, noteID uuid.UUID) ([]RelationDetail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+relationCols+`, sn.title, sn.status, tn.title, tn.status
		 FROM note_relations r
		 JOIN notes sn ON sn.id = r.source_note_id
		 JOIN notes tn ON tn.id = r.target_note_id
		 WHERE r.source_note_id = $1 OR r.target_note_id = $1
		 ORDER BY r.created_at DESC, r.id`,
		noteID)
	if err != nil {
		return nil, fmt.Errorf("listing relations for note %s: %w", noteID, err)
	}
	defer rows.Close()

	return scanRelationDetails(rows)
}

// ListRelations returns the most recent relations with endpoint titles and
// statuses.
func (s *Store) ListRelations(ctx context.Context, limit int) ([]RelationDetail, error) {
	limit = normalizeLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT `+relationCols+`, sn.title, sn.status, tn.title, tn.status
		 FROM note_relations r
		 JOIN notes sn ON sn.id = r.source_note_id
		 JOIN notes tn ON tn.id = r.target_note_id
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	defer rows.Close()

	return scanRelationDetails(rows)
}

// RelationsBySource returns the outbound relations of the given notes,
// oldest first for stable iteration.
func (s *Store) RelationsBySource(ctx context.Context, ids []uuid.UUID) ([]Relation, error) {
	if len(ids) == 0 {
		return []Relation{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+relationCols+`
		 FROM note_relations r
		 WHERE r.source_note_id = ANY($1)
		 ORDER BY r.created_at, r.id`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("fetching relations: %w", err)
	}
	defer rows.Close()

	return scanRelations(rows)
}

// RelationMaps returns, for every requested note, its outbound relations
// grouped by type plus synthetic superseded_by entries from inbound
// supersedes edges. Every id gets an entry; lists are sorted and deduplicated.
func (s *Store) RelationMaps(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]RelationMap, error) {
	maps := make(map[uuid.UUID]RelationMap, len(ids))
	for _, id := range ids {
		maps[id] = RelationMap{}
	}
	if len(ids) == 0 {
		return maps, nil
	}

	outbound, err := s.RelationsBySource(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rel := range outbound {
		m := maps[rel.SourceID]
		m[rel.Type] = append(m[rel.Type], rel.TargetID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT target_note_id, source_note_id
		 FROM note_relations
		 WHERE relation_type = $1 AND target_note_id = ANY($2)`,
		RelationSupersedes, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching inbound supersedes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var targetID, sourceID uuid.UUID
		if err := rows.Scan(&targetID, &sourceID); err != nil {
			return nil, fmt.Errorf("scanning inbound supersedes: %w", err)
		}
		m := maps[targetID]
		m[RelationSupersededBy] = append(m[RelationSupersededBy], sourceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading inbound supersedes: %w", err)
	}

	for _, m := range maps {
		for typ, list := range m {
			m[typ] = sortedUnique(list)
		}
	}

	return maps, nil
}

// SuggestRelations proposes relations from the note to its nearest published
// neighbors with similarity at or above threshold (default 0.4, topK 5).
// Returns ErrNoEmbedding if the note has no stored vector.
func (s *Store) SuggestRelations(ctx context.Context, noteID uuid.UUID, threshold float64, topK int) ([]RelationSuggestion, error) {
	if threshold <= 0 {
		threshold = DefaultSuggestThreshold
	}
	if topK <= 0 {
		topK = DefaultSuggestTopK
	}

	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT embedding FROM embeddings WHERE note_id = $1`, noteID,
	).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", noteID, ErrNoEmbedding)
	}
	if err != nil {
		return nil, fmt.Errorf("loading embedding for note %s: %w", noteID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT n.id, n.title, 1 - (e.embedding <=> $1) AS similarity
		 FROM embeddings e
		 JOIN notes n ON n.id = e.note_id
		 WHERE n.status = 'published' AND n.id <> $2
		 ORDER BY e.embedding <=> $1
		 LIMIT $3`,
		vec, noteID, topK)
	if err != nil {
		return nil, fmt.Errorf("suggesting relations for note %s: %w", noteID, err)
	}
	defer rows.Close()

	var suggestions []RelationSuggestion
	for rows.Next() {
		var sug RelationSuggestion
		if err := rows.Scan(&sug.NoteID, &sug.Title, &sug.Similarity); err != nil {
			return nil, fmt.Errorf("scanning relation suggestion: %w", err)
		}
		if sug.Similarity >= threshold {
			suggestions = append(suggestions, sug)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading relation suggestions: %w", err)
	}

	return suggestions, nil
}

// SearchCandidates returns published notes ranked by cosine similarity to the
// query vector. Notes that are the target of a supersedes relation are
// excluded. Scores are clamped to [0,1]; distance ties break by most recent
// update. Tags are hydrated.
func (s *Store) SearchCandidates(ctx context.Context, vec []float32, limit int) ([]Candidate, error) {
	if len(vec) == 0 {
		return []Candidate{}, nil
	}
	if limit <= 0 {
		return []Candidate{}, nil
	}

	qvec := pgvector.NewVector(vec)
	rows, err := s.pool.Query(ctx,
		`SELECT `+noteCols+`, LEAST(1.0, GREATEST(0.0, 1 - (e.embedding <=> $1))) AS score
		 FROM notes n
		 JOIN embeddings e ON e.note_id = n.id
		 WHERE n.status = 'published'
		   AND NOT EXISTS (
		     SELECT 1 FROM note_relations r
		     WHERE r.target_note_id = n.id AND r.relation_type = 'supersedes'
		   )
		 ORDER BY e.embedding <=> $1, n.updated_at DESC
		 LIMIT $2`,
		qvec, limit)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	var notes []*Note
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.Note.ID, &c.Note.Title, &c.Note.Content, &c.Note.Summary,
			&c.Note.Author, &c.Note.Status, &c.Note.CreatedAt, &c.Note.UpdatedAt,
			&c.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning search candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search candidates: %w", err)
	}

	for i := range candidates {
		notes = append(notes, &candidates[i].Note)
	}
	if err := s.hydrateTags(ctx, notes); err != nil {
		return nil, err
	}

	return candidates, nil
}

// EntitiesForNotes returns, per note, the canonical entity values of the given
// type. Notes without matching links are absent.
func (s *Store) EntitiesForNotes(ctx context.Context, ids []uuid.UUID, entityType string) (map[uuid.UUID][]string, error) {
	if len(ids) == 0 || entityType == "" {
		return map[uuid.UUID][]string{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ne.note_id, COALESCE(e.canonical_value, e.value)
		 FROM note_entities ne
		 JOIN entities e ON e.id = ne.entity_id
		 WHERE ne.note_id = ANY($1) AND e.entity_type = $2`,
		ids, entityType)
	if err != nil {
		return nil, fmt.Errorf("fetching entities: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]string)
	for rows.Next() {
		var noteID uuid.UUID
		var canonical string
		if err := rows.Scan(&noteID, &canonical); err != nil {
			return nil, fmt.Errorf("scanning entity link: %w", err)
		}
		result[noteID] = append(result[noteID], canonical)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entity links: %w", err)
	}
	return result, nil
}

// Exists reports whether a note exists.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking note %s: %w", id, err)
	}
	return exists, nil
}

// CountNotes returns the total number of notes.
func (s *Store) CountNotes(ctx context.Context) (int, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("note count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// entitiesForNote returns the entity links of one note.
func (s *Store) entitiesForNote(ctx context.Context, noteID uuid.UUID) ([]Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.entity_type, e.value, COALESCE(e.canonical_value, e.value), COALESCE(ne.role, '')
		 FROM note_entities ne
		 JOIN entities e ON e.id = ne.entity_id
		 WHERE ne.note_id = $1
		 ORDER BY e.entity_type, lower(COALESCE(e.canonical_value, e.value))`,
		noteID)
	if err != nil {
		return nil, fmt.Errorf("fetching entities for note %s: %w", noteID, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.Value, &e.Canonical, &e.Role); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entities: %w", err)
	}
	return entities, nil
}

// tagsForNotes returns tag names per note id, sorted case-insensitively.
func (s *Store) tagsForNotes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID][]string{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT nt.note_id, t.name
		 FROM note_tags nt
		 JOIN tags t ON t.id = nt.tag_id
		 WHERE nt.note_id = ANY($1)
		 ORDER BY lower(t.name)`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("fetching tags: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]string)
	for rows.Next() {
		var noteID uuid.UUID
		var name string
		if err := rows.Scan(&noteID, &name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		result[noteID] = append(result[noteID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}
	return result, nil
}

// hydrateTags fills Note.Tags for the given notes in one query.
func (s *Store) hydrateTags(ctx context.Context, notes []*Note) error {
	if len(notes) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	tags, err := s.tagsForNotes(ctx, ids)
	if err != nil {
		return err
	}
	for _, n := range notes {
		n.Tags = tags[n.ID]
	}
	return nil
}

// scanNote reads one Note from a pgx.Row (standard column set, no tags).
func scanNote(row pgx.Row) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Summary, &n.Author, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// scanNotes reads Note structs from pgx.Rows (standard column set, no tags).
func scanNotes(rows pgx.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		n := &Note{}
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Summary, &n.Author, &n.Status, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading notes: %w", err)
	}
	return notes, nil
}

// scanRelations reads Relation structs from pgx.Rows (standard column set).
func scanRelations(rows pgx.Rows) ([]Relation, error) {
	var relations []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Type, &r.Confidence, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading relations: %w", err)
	}
	return relations, nil
}

// scanRelationDetails reads RelationDetail structs (relation + endpoint info).
func scanRelationDetails(rows pgx.Rows) ([]RelationDetail, error) {
	var details []RelationDetail
	for rows.Next() {
		var d RelationDetail
		if err := rows.Scan(
			&d.ID, &d.SourceID, &d.TargetID, &d.Type, &d.Confidence, &d.CreatedAt, &d.UpdatedAt,
			&d.SourceTitle, &d.SourceStatus, &d.TargetTitle, &d.TargetStatus,
		); err != nil {
			return nil, fmt.Errorf("scanning relation detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading relation details: %w", err)
	}
	return details, nil
}

// sortedUnique sorts ids by byte order and removes duplicates in place.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(ids)
}

// normalizeLimit applies the default and maximum list limits.
func normalizeLimit(limit int) int {
	const (
		defaultLimit = 20
		maxLimit     = 500
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// escapeLike escapes LIKE/ILIKE wildcards in a user-supplied term.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
