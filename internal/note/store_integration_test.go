//go:build integration
// +build integration

package note

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kennis/internal/testutil"
)

// setupStore provides unified setup for all integration tests.
// Returns store, database container, embedder and cleanup function.
func setupStore(t *testing.T) (*Store, *testutil.TestDBContainer, *testutil.MockEmbedder, func()) {
	t.Helper()

	pg, cleanup := testutil.SetupTestDB(t)
	emb := testutil.NewMockEmbedder(768)
	store, err := NewStore(pg.Pool, emb, testutil.DiscardLogger())
	if err != nil {
		cleanup()
		t.Fatalf("NewStore: %v", err)
	}
	return store, pg, emb, cleanup
}

// axis returns a 768-dim unit vector along the given axis.
func axis(i int) []float32 {
	v := make([]float32, 768)
	v[i] = 1
	return v
}

// mix returns a 768-dim vector with wa at axis a and wb at axis b.
func mix(a int, wa float32, b int, wb float32) []float32 {
	v := make([]float32, 768)
	v[a] = wa
	v[b] = wb
	return v
}

// mustCreate pins the embedding for the draft and creates it.
func mustCreate(t *testing.T, store *Store, emb *testutil.MockEmbedder, draft NewNote, vec []float32) Detail {
	t.Helper()
	emb.SetVector(draft.Title+"\n\n"+draft.Content, vec)
	detail, err := store.Create(context.Background(), draft)
	require.NoError(t, err)
	return detail
}

func TestStore_CreateAndGet_Integration(t *testing.T) {
	ctx := context.Background()
	store, pg, emb, cleanup := setupStore(t)
	defer cleanup()

	detail := mustCreate(t, store, emb, NewNote{
		Title:   "Medicatiebeleid",
		Content: "Medicatie wordt dubbel gecontroleerd.",
		Summary: "Dubbele controle",
		Author:  "anna",
		Status:  StatusPublished,
		Tags:    []string{"Medicatie", "medicatie", "Veiligheid"},
		Entities: []EntityRef{
			{Type: "topic", Value: "Medicatie", Canonical: "medicatie", Role: "subject"},
		},
	}, axis(0))

	assert.Equal(t, []string{"Medicatie", "Veiligheid"}, detail.Note.Tags,
		"duplicate tags should be deduplicated case-insensitively")
	require.Len(t, detail.Entities, 1)
	assert.Equal(t, "medicatie", detail.Entities[0].Canonical)

	got, err := store.Get(ctx, detail.Note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Medicatiebeleid", got.Note.Title)
	assert.Equal(t, StatusPublished, got.Note.Status)
	assert.Equal(t, []string{"Medicatie", "Veiligheid"}, got.Note.Tags)
	require.Len(t, got.Entities, 1)
	assert.Equal(t, "subject", got.Entities[0].Role)

	// The embedding row records model and dimension.
	var model string
	var dim int
	err = pg.Pool.QueryRow(ctx,
		`SELECT model, dim FROM embeddings WHERE note_id = $1`, detail.Note.ID).Scan(&model, &dim)
	require.NoError(t, err)
	assert.Equal(t, "mock/test-embedder", model)
	assert.Equal(t, 768, dim)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Create_DefaultsToDraft_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	detail := mustCreate(t, store, emb, NewNote{Title: "Concept", Content: "Nog niet af."}, axis(1))
	assert.Equal(t, StatusDraft, detail.Note.Status)

	got, err := store.Get(ctx, detail.Note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Note.Status)
}

func TestStore_TagsSharedAcrossNotes_Integration(t *testing.T) {
	ctx := context.Background()
	store, pg, emb, cleanup := setupStore(t)
	defer cleanup()

	first := mustCreate(t, store, emb, NewNote{
		Title: "Eerste", Content: "a", Tags: []string{"Zorgplan"},
	}, axis(0))
	second := mustCreate(t, store, emb, NewNote{
		Title: "Tweede", Content: "b", Tags: []string{"ZORGPLAN"},
	}, axis(1))

	// Both notes link to the single stored tag, keeping its original casing.
	assert.Equal(t, []string{"Zorgplan"}, first.Note.Tags)
	assert.Equal(t, []string{"Zorgplan"}, second.Note.Tags)

	var count int
	err := pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_CreateRelation_Validation_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "A", Content: "a"}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "B", Content: "b"}, axis(1))

	_, err := store.CreateRelation(ctx, a.Note.ID, a.Note.ID, RelationRelated, nil)
	assert.ErrorIs(t, err, ErrSelfRelation)

	_, err = store.CreateRelation(ctx, a.Note.ID, b.Note.ID, "similar", nil)
	assert.ErrorIs(t, err, ErrUnknownRelationType)

	_, err = store.CreateRelation(ctx, a.Note.ID, uuid.New(), RelationRelated, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.CreateRelation(ctx, uuid.New(), b.Note.ID, RelationRelated, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	rel, err := store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationSupports, nil)
	require.NoError(t, err)
	assert.Equal(t, RelationSupports, rel.Type)

	// Same ordered pair fails regardless of type.
	_, err = store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationRelated, nil)
	assert.ErrorIs(t, err, ErrDuplicateRelation)

	// The reversed pair is a distinct edge.
	_, err = store.CreateRelation(ctx, b.Note.ID, a.Note.ID, RelationRelated, nil)
	assert.NoError(t, err)
}

func TestStore_Supersedes_ArchivesTarget_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	oldNote := mustCreate(t, store, emb, NewNote{
		Title: "Wondzorg 2023", Content: "Verouderd protocol.", Status: StatusPublished,
	}, axis(0))
	newNote := mustCreate(t, store, emb, NewNote{
		Title: "Wondzorg 2024", Content: "Huidig protocol.", Status: StatusPublished,
	}, axis(1))

	_, err := store.CreateRelation(ctx, newNote.Note.ID, oldNote.Note.ID, RelationSupersedes, nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, oldNote.Note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Note.Status, "supersedes should archive the target")
}

func TestStore_Create_WithRelations_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	oldNote := mustCreate(t, store, emb, NewNote{
		Title: "Oud beleid", Content: "v1", Status: StatusPublished,
	}, axis(0))
	other := mustCreate(t, store, emb, NewNote{
		Title: "Context", Content: "achtergrond", Status: StatusPublished,
	}, axis(1))

	conf := 0.9
	detail := mustCreate(t, store, emb, NewNote{
		Title:   "Nieuw beleid",
		Content: "v2",
		Status:  StatusPublished,
		Relations: []NewRelation{
			{TargetID: oldNote.Note.ID, Type: RelationSupersedes},
			{TargetID: other.Note.ID, Type: RelationRelated, Confidence: &conf},
		},
	}, axis(2))

	require.Len(t, detail.Relations, 2)
	require.NotNil(t, detail.Relations[0].Confidence)
	assert.Equal(t, 1.0, *detail.Relations[0].Confidence, "nil confidence defaults to 1.0")
	assert.Equal(t, 0.9, *detail.Relations[1].Confidence)

	got, err := store.Get(ctx, oldNote.Note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Note.Status)
}

func TestStore_SearchCandidates_ExcludesSuperseded_Integration(t *testing.T) {
	ctx := context.Background()
	store, pg, emb, cleanup := setupStore(t)
	defer cleanup()

	oldNote := mustCreate(t, store, emb, NewNote{
		Title: "Wifi wachtwoord oud", Content: "welkom01", Status: StatusPublished,
	}, axis(0))
	newNote := mustCreate(t, store, emb, NewNote{
		Title: "Wifi wachtwoord", Content: "welkom02", Status: StatusPublished,
		Relations: []NewRelation{{TargetID: oldNote.Note.ID, Type: RelationSupersedes}},
	}, axis(0))
	draft := mustCreate(t, store, emb, NewNote{
		Title: "Wifi concept", Content: "nog niet gepubliceerd",
	}, axis(0))

	results, err := store.SearchCandidates(ctx, axis(0), 10)
	require.NoError(t, err)

	ids := make([]uuid.UUID, len(results))
	for i, r := range results {
		ids[i] = r.Note.ID
	}
	assert.Contains(t, ids, newNote.Note.ID)
	assert.NotContains(t, ids, oldNote.Note.ID, "superseded note must not appear")
	assert.NotContains(t, ids, draft.Note.ID, "draft note must not appear")

	// Even if the superseded note is flipped back to published, the
	// supersedes anti-join still keeps it out.
	_, err = pg.Pool.Exec(ctx, `UPDATE notes SET status = 'published' WHERE id = $1`, oldNote.Note.ID)
	require.NoError(t, err)

	results, err = store.SearchCandidates(ctx, axis(0), 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, oldNote.Note.ID, r.Note.ID)
	}
}

func TestStore_SearchCandidates_ScoresAndOrdering_Integration(t *testing.T) {
	ctx := context.Background()
	store, pg, emb, cleanup := setupStore(t)
	defer cleanup()

	near := mustCreate(t, store, emb, NewNote{
		Title: "Dichtbij", Content: "a", Status: StatusPublished, Tags: []string{"zorg"},
	}, axis(0))
	far := mustCreate(t, store, emb, NewNote{
		Title: "Ver weg", Content: "b", Status: StatusPublished,
	}, axis(1))

	// Opposite vector: raw similarity would be negative, the score clamps to 0.
	opposite := make([]float32, 768)
	opposite[0] = -1
	neg := mustCreate(t, store, emb, NewNote{
		Title: "Tegenovergesteld", Content: "c", Status: StatusPublished,
	}, opposite)

	results, err := store.SearchCandidates(ctx, axis(0), 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, near.Note.ID, results[0].Note.ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, []string{"zorg"}, results[0].Note.Tags, "tags should be hydrated")
	assert.Equal(t, far.Note.ID, results[1].Note.ID)
	assert.InDelta(t, 0.0, results[1].Score, 0.001)
	assert.Equal(t, neg.Note.ID, results[2].Note.ID)
	assert.Equal(t, 0.0, results[2].Score, "negative similarity clamps to zero")

	// Equal distance: the most recently updated note wins.
	twinA := mustCreate(t, store, emb, NewNote{
		Title: "Tweeling A", Content: "x", Status: StatusPublished,
	}, axis(5))
	twinB := mustCreate(t, store, emb, NewNote{
		Title: "Tweeling B", Content: "y", Status: StatusPublished,
	}, axis(5))

	_, err = pg.Pool.Exec(ctx, `UPDATE notes SET updated_at = $2 WHERE id = $1`,
		twinA.Note.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = pg.Pool.Exec(ctx, `UPDATE notes SET updated_at = $2 WHERE id = $1`,
		twinB.Note.ID, time.Now())
	require.NoError(t, err)

	results, err = store.SearchCandidates(ctx, axis(5), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, twinB.Note.ID, results[0].Note.ID, "tie should break by most recent update")
	assert.Equal(t, twinA.Note.ID, results[1].Note.ID)
}

func TestStore_RelationMaps_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "A", Content: "a", Status: StatusPublished}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "B", Content: "b", Status: StatusPublished}, axis(1))
	c := mustCreate(t, store, emb, NewNote{Title: "C", Content: "c", Status: StatusPublished}, axis(2))
	d := mustCreate(t, store, emb, NewNote{Title: "D", Content: "d", Status: StatusPublished}, axis(3))
	e := mustCreate(t, store, emb, NewNote{Title: "E", Content: "e", Status: StatusPublished}, axis(4))

	_, err := store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationSupports, nil)
	require.NoError(t, err)
	_, err = store.CreateRelation(ctx, a.Note.ID, c.Note.ID, RelationSupports, nil)
	require.NoError(t, err)
	_, err = store.CreateRelation(ctx, a.Note.ID, d.Note.ID, RelationRelated, nil)
	require.NoError(t, err)
	_, err = store.CreateRelation(ctx, e.Note.ID, a.Note.ID, RelationSupersedes, nil)
	require.NoError(t, err)

	maps, err := store.RelationMaps(ctx, []uuid.UUID{a.Note.ID, b.Note.ID})
	require.NoError(t, err)
	require.Len(t, maps, 2)

	am := maps[a.Note.ID]
	assert.Equal(t, sortedUnique([]uuid.UUID{b.Note.ID, c.Note.ID}), am[RelationSupports])
	assert.Equal(t, []uuid.UUID{d.Note.ID}, am[RelationRelated])
	assert.Equal(t, []uuid.UUID{e.Note.ID}, am[RelationSupersededBy],
		"inbound supersedes should appear as synthetic superseded_by")

	// B has inbound supports only, which contributes nothing.
	assert.Empty(t, maps[b.Note.ID])
}

func TestStore_SuggestRelations_Integration(t *testing.T) {
	ctx := context.Background()
	store, pg, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "Knox beleid", Content: "a", Status: StatusPublished}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "MFA instructie", Content: "b", Status: StatusPublished}, axis(1))
	mustCreate(t, store, emb, NewNote{Title: "Los concept", Content: "c"}, axis(0))

	subject := mustCreate(t, store, emb, NewNote{
		Title: "Knox account aanvragen", Content: "x", Status: StatusPublished,
	}, mix(0, 0.8, 1, 0.6))

	// High threshold keeps only the strongest neighbor.
	suggestions, err := store.SuggestRelations(ctx, subject.Note.ID, 0.7, 5)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, a.Note.ID, suggestions[0].NoteID)
	assert.InDelta(t, 0.8, suggestions[0].Similarity, 0.01)

	// Defaults (threshold 0.4, topK 5) admit both published neighbors,
	// nearest first; the draft is never suggested.
	suggestions, err = store.SuggestRelations(ctx, subject.Note.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, a.Note.ID, suggestions[0].NoteID)
	assert.Equal(t, b.Note.ID, suggestions[1].NoteID)
	for _, s := range suggestions {
		assert.NotEqual(t, subject.Note.ID, s.NoteID, "a note never suggests itself")
	}

	// A note without a stored vector cannot produce suggestions.
	bareID := uuid.New()
	_, err = pg.Pool.Exec(ctx,
		`INSERT INTO notes (id, title, content) VALUES ($1, 'Kaal', 'geen vector')`, bareID)
	require.NoError(t, err)

	_, err = store.SuggestRelations(ctx, bareID, 0, 0)
	assert.ErrorIs(t, err, ErrNoEmbedding)
}

func TestStore_UpdateRelationType_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "A", Content: "a", Status: StatusPublished}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "B", Content: "b", Status: StatusPublished}, axis(1))

	rel, err := store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationRelated, nil)
	require.NoError(t, err)

	updated, err := store.UpdateRelationType(ctx, rel.ID, RelationSupersedes)
	require.NoError(t, err)
	assert.Equal(t, RelationSupersedes, updated.Type)

	got, err := store.Get(ctx, b.Note.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Note.Status, "retyping to supersedes archives the target")

	_, err = store.UpdateRelationType(ctx, uuid.New(), RelationRelated)
	assert.ErrorIs(t, err, ErrRelationNotFound)

	_, err = store.UpdateRelationType(ctx, rel.ID, "bogus")
	assert.ErrorIs(t, err, ErrUnknownRelationType)
}

func TestStore_DeleteRelation_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "A", Content: "a"}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "B", Content: "b"}, axis(1))

	rel, err := store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationRelated, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteRelation(ctx, rel.ID))
	assert.ErrorIs(t, store.DeleteRelation(ctx, rel.ID), ErrRelationNotFound)
}

func TestStore_ListRelationsForNote_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "Bron", Content: "a", Status: StatusPublished}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "Doel", Content: "b", Status: StatusPublished}, axis(1))
	c := mustCreate(t, store, emb, NewNote{Title: "Derde", Content: "c", Status: StatusPublished}, axis(2))

	_, err := store.CreateRelation(ctx, a.Note.ID, b.Note.ID, RelationSupports, nil)
	require.NoError(t, err)
	_, err = store.CreateRelation(ctx, c.Note.ID, a.Note.ID, RelationContradicts, nil)
	require.NoError(t, err)

	details, err := store.ListRelationsForNote(ctx, a.Note.ID)
	require.NoError(t, err)
	require.Len(t, details, 2, "both outbound and inbound relations are listed")

	for _, d := range details {
		switch d.Type {
		case RelationSupports:
			assert.Equal(t, "Bron", d.SourceTitle)
			assert.Equal(t, "Doel", d.TargetTitle)
		case RelationContradicts:
			assert.Equal(t, "Derde", d.SourceTitle)
			assert.Equal(t, "Bron", d.TargetTitle)
		default:
			t.Errorf("unexpected relation type %s", d.Type)
		}
	}

	all, err := store.ListRelations(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_EntitiesForNotes_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{
		Title: "A", Content: "a", Status: StatusPublished,
		Entities: []EntityRef{
			{Type: "topic", Value: "Knox", Canonical: "knox"},
			{Type: "topic", Value: "MFA"},
			{Type: "person", Value: "Anna"},
		},
	}, axis(0))
	b := mustCreate(t, store, emb, NewNote{
		Title: "B", Content: "b", Status: StatusPublished,
		Entities: []EntityRef{
			{Type: "topic", Value: "KNOX"},
		},
	}, axis(1))

	byNote, err := store.EntitiesForNotes(ctx, []uuid.UUID{a.Note.ID, b.Note.ID}, "topic")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"knox", "MFA"}, byNote[a.Note.ID])
	assert.Equal(t, []string{"knox"}, byNote[b.Note.ID],
		"entity should be shared via its canonical value")

	empty, err := store.EntitiesForNotes(ctx, nil, "topic")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_ListAndOptions_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	mustCreate(t, store, emb, NewNote{Title: "100% wol wassen", Content: "a"}, axis(0))
	mustCreate(t, store, emb, NewNote{Title: "1000 stappen per dag", Content: "b"}, axis(1))
	mustCreate(t, store, emb, NewNote{Title: "Medicatieronde", Content: "c"}, axis(2))

	options, err := store.ListOptions(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, options, 1, "LIKE wildcards in the term must be literal")
	assert.Equal(t, "100% wol wassen", options[0].Title)

	options, err = store.ListOptions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, options, 3)

	notes, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	count, err := store.CountNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	exists, err := store.Exists(ctx, options[0].ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_GetBulk_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, emb, cleanup := setupStore(t)
	defer cleanup()

	a := mustCreate(t, store, emb, NewNote{Title: "A", Content: "a", Tags: []string{"x"}}, axis(0))
	b := mustCreate(t, store, emb, NewNote{Title: "B", Content: "b"}, axis(1))

	missing := uuid.New()
	notes, err := store.GetBulk(ctx, []uuid.UUID{a.Note.ID, b.Note.ID, missing})
	require.NoError(t, err)

	require.Len(t, notes, 2)
	assert.Equal(t, "A", notes[a.Note.ID].Title)
	assert.Equal(t, []string{"x"}, notes[a.Note.ID].Tags)
	_, ok := notes[missing]
	assert.False(t, ok, "missing ids are absent, not errors")

	empty, err := store.GetBulk(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
