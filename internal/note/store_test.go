package note

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kennis/internal/testutil"
)

func TestNewStore_Validation(t *testing.T) {
	emb := testutil.NewMockEmbedder(8)

	_, err := NewStore(nil, emb, testutil.DiscardLogger())
	assert.Error(t, err, "nil pool should be rejected")

	_, err = NewStore(new(pgxpool.Pool), nil, testutil.DiscardLogger())
	assert.Error(t, err, "nil embedder should be rejected")

	store, err := NewStore(new(pgxpool.Pool), emb, nil)
	require.NoError(t, err)
	assert.NotNil(t, store.logger, "nil logger should fall back to default")
}

func TestValidateDraft(t *testing.T) {
	target := uuid.New()

	tests := []struct {
		name    string
		draft   NewNote
		wantErr string
	}{
		{
			name:    "missing title",
			draft:   NewNote{Content: "inhoud"},
			wantErr: "title is required",
		},
		{
			name:    "whitespace title",
			draft:   NewNote{Title: "   ", Content: "inhoud"},
			wantErr: "title is required",
		},
		{
			name:    "missing content",
			draft:   NewNote{Title: "titel"},
			wantErr: "content is required",
		},
		{
			name:    "invalid status",
			draft:   NewNote{Title: "titel", Content: "inhoud", Status: "live"},
			wantErr: "invalid status",
		},
		{
			name:    "entity without type",
			draft:   NewNote{Title: "t", Content: "c", Entities: []EntityRef{{Value: "Knox"}}},
			wantErr: "entity 0",
		},
		{
			name:  "valid minimal",
			draft: NewNote{Title: "titel", Content: "inhoud"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDraft(&tt.draft)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("empty status defaults to draft", func(t *testing.T) {
		draft := NewNote{Title: "t", Content: "c"}
		require.NoError(t, validateDraft(&draft))
		assert.Equal(t, StatusDraft, draft.Status)
	})

	t.Run("unknown relation type", func(t *testing.T) {
		draft := NewNote{Title: "t", Content: "c", Relations: []NewRelation{
			{TargetID: target, Type: "similar"},
		}}
		err := validateDraft(&draft)
		assert.ErrorIs(t, err, ErrUnknownRelationType)
	})

	t.Run("confidence clamped", func(t *testing.T) {
		high := 1.7
		low := -0.3
		draft := NewNote{Title: "t", Content: "c", Relations: []NewRelation{
			{TargetID: target, Type: RelationRelated, Confidence: &high},
			{TargetID: uuid.New(), Type: RelationSupports, Confidence: &low},
		}}
		require.NoError(t, validateDraft(&draft))
		assert.Equal(t, 1.0, *draft.Relations[0].Confidence)
		assert.Equal(t, 0.0, *draft.Relations[1].Confidence)
	})
}

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")

	got := sortedUnique([]uuid.UUID{c, b, a, b, c})
	assert.Equal(t, []uuid.UUID{a, b, c}, got)

	assert.Empty(t, sortedUnique(nil))
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"medicatie", "medicatie"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`pad\dag`, `pad\\dag`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.input); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 20, normalizeLimit(0))
	assert.Equal(t, 20, normalizeLimit(-5))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, 500, normalizeLimit(10000))
}

func TestInsertRelation_SelfRejected(t *testing.T) {
	// Self-relation check runs before any query, so no live pool is needed.
	emb := testutil.NewMockEmbedder(8)
	store, err := NewStore(new(pgxpool.Pool), emb, testutil.DiscardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	id := uuid.New()
	_, err = store.insertRelation(ctx, store.pool, id, id, RelationRelated, nil)
	assert.ErrorIs(t, err, ErrSelfRelation)

	_, err = store.insertRelation(ctx, store.pool, uuid.New(), id, "bogus", nil)
	assert.True(t, errors.Is(err, ErrUnknownRelationType))
}
