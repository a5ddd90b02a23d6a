package tag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatCandidates_Weighting(t *testing.T) {
	// "wondzorg protocol" occurs twice as a bigram (2 × 1.5 = 3.0) and must
	// outrank every unigram (max 2.0).
	text := "wondzorg protocol wondzorg protocol decubitus"

	got := StatCandidates(text, 20)
	require.NotEmpty(t, got)
	assert.Equal(t, "wondzorg protocol", got[0])

	// Ties at weight 2.0 keep first-seen order: unigrams before trigrams.
	assert.Equal(t, []string{"wondzorg protocol", "wondzorg", "protocol"}, got[:3])
}

func TestStatCandidates_StopwordsRemoved(t *testing.T) {
	got := StatCandidates("de wondzorg en het protocol", 20)

	assert.NotContains(t, got, "de")
	assert.NotContains(t, got, "het")
	assert.Contains(t, got, "wondzorg")
	// Stopwords drop before n-gram construction, so the survivors form a bigram.
	assert.Contains(t, got, "wondzorg protocol")
}

func TestStatCandidates_ShortTokensDropped(t *testing.T) {
	got := StatCandidates("op ad hoc basis", 20)

	assert.NotContains(t, got, "ad")
	assert.Contains(t, got, "hoc")
	assert.Contains(t, got, "basis")
}

func TestStatCandidates_AccentsAndHyphens(t *testing.T) {
	got := StatCandidates("hygiëne rondom covid-19 maatregelen", 20)

	assert.Contains(t, got, "hygiëne")
	assert.Contains(t, got, "covid-19")
}

func TestStatCandidates_Bounds(t *testing.T) {
	text := strings.Repeat("alfa beta gamma delta epsilon ", 3)

	assert.Nil(t, StatCandidates(text, 0))
	assert.Nil(t, StatCandidates(text, -1))
	assert.LessOrEqual(t, len(StatCandidates(text, 2)), 4, "at most twice n")
}

func TestStatCandidates_Deterministic(t *testing.T) {
	text := "medicatie toediening insuline schema medicatie controle"

	first := StatCandidates(text, 10)
	for range 5 {
		assert.Equal(t, first, StatCandidates(text, 10))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Wondzorg  ", "wondzorg"},
		{"Wond   Zorg", "wond zorg"},
		{"knox-account", "knox-account"},
		{"COVID-19!", "covid-19"},
		{"a & b", "a b"},
		{"hygiëne", "hygiëne"},
		{"tabs\ten\nregels", "tabs en regels"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
