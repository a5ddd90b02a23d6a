// Package note manages knowledge notes: content, embeddings, typed relations,
// entities and tags, backed by PostgreSQL + pgvector.
package note

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested note does not exist.
	ErrNotFound = errors.New("note not found")

	// ErrRelationNotFound indicates the requested relation does not exist.
	ErrRelationNotFound = errors.New("relation not found")

	// ErrSelfRelation indicates a relation where source and target are the same note.
	ErrSelfRelation = errors.New("note cannot relate to itself")

	// ErrDuplicateRelation indicates a relation already exists for the note pair.
	ErrDuplicateRelation = errors.New("relation already exists for this note pair")

	// ErrUnknownRelationType indicates an unrecognized relation type.
	ErrUnknownRelationType = errors.New("unknown relation type")

	// ErrNoEmbedding indicates a note has no stored embedding vector.
	ErrNoEmbedding = errors.New("note has no embedding")
)

// Status is the lifecycle state of a note: draft → published → archived.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ParseStatus converts a string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q (expected draft, published or archived)", s)
	}
	return st, nil
}

// RelationType classifies a directed edge between two notes.
type RelationType string

const (
	RelationSupersedes  RelationType = "supersedes"
	RelationSupports    RelationType = "supports"
	RelationContradicts RelationType = "contradicts"
	RelationRelated     RelationType = "related"
	RelationDuplicate   RelationType = "duplicate"

	// RelationSupersededBy is the synthetic reverse of supersedes. It appears
	// in relation maps only and is never stored.
	RelationSupersededBy RelationType = "superseded_by"
)

// Valid reports whether t is a storable relation type.
func (t RelationType) Valid() bool {
	switch t {
	case RelationSupersedes, RelationSupports, RelationContradicts, RelationRelated, RelationDuplicate:
		return true
	}
	return false
}

// Soft reports whether t is followed during search expansion.
// Supersedes and duplicate edges redirect rather than expand.
func (t RelationType) Soft() bool {
	switch t {
	case RelationSupports, RelationContradicts, RelationRelated:
		return true
	}
	return false
}

// ParseRelationType converts a string to a RelationType, rejecting unknown values.
func ParseRelationType(s string) (RelationType, error) {
	t := RelationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelationType, s)
	}
	return t, nil
}

// Note is a stored knowledge note. Tags are hydrated on read.
type Note struct {
	ID        uuid.UUID
	Title     string
	Content   string
	Summary   string
	Author    string
	Status    Status
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Relation is a directed, typed edge between two notes.
type Relation struct {
	ID         uuid.UUID
	SourceID   uuid.UUID
	TargetID   uuid.UUID
	Type       RelationType
	Confidence *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RelationDetail is a relation with the titles and statuses of both endpoints,
// for listing.
type RelationDetail struct {
	Relation
	SourceTitle  string
	SourceStatus Status
	TargetTitle  string
	TargetStatus Status
}

// Entity is a structured reference extracted from or attached to a note.
type Entity struct {
	ID        uuid.UUID
	Type      string
	Value     string
	Canonical string
	Role      string
}

// EntityRef is the input form of an entity link on a new note.
// Canonical defaults to Value when empty.
type EntityRef struct {
	Type      string
	Value     string
	Canonical string
	Role      string
}

// Tag is a stored tag. Names are unique case-insensitively.
type Tag struct {
	ID   uuid.UUID
	Name string
}

// NewNote is the input for Store.Create.
type NewNote struct {
	Title     string
	Content   string
	Summary   string
	Author    string
	Status    Status // empty = draft
	Tags      []string
	Entities  []EntityRef
	Relations []NewRelation
}

// NewRelation is an outbound relation attached during Create.
// A nil Confidence defaults to 1.0.
type NewRelation struct {
	TargetID   uuid.UUID
	Type       RelationType
	Confidence *float64
}

// Detail is a note with its outbound relations and entity links.
type Detail struct {
	Note      Note
	Relations []Relation
	Entities  []Entity
}

// Option is a compact note reference for pickers and completion.
type Option struct {
	ID        uuid.UUID
	Title     string
	Status    Status
	UpdatedAt time.Time
}

// RelationSuggestion is a proposed relation to an existing note, ranked by
// embedding similarity.
type RelationSuggestion struct {
	NoteID     uuid.UUID
	Title      string
	Similarity float64
}

// Candidate is a published note with its similarity score against a query
// vector, produced by Store.SearchCandidates.
type Candidate struct {
	Note  Note
	Score float64
}

// RelationMap maps relation types to sorted, deduplicated target note ids.
// The synthetic superseded_by key holds inbound supersedes sources.
type RelationMap = map[RelationType][]uuid.UUID
