// Package tag proposes tags for note content. Candidates come from two
// independent sources, an LLM keyword extraction and a statistical n-gram
// ranking, and a diverse subset is selected with maximal marginal relevance
// against the document embedding. Selected tags can be snapped to a
// controlled taxonomy.
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/genkit"
)

const (
	// DefaultSuggestions is the number of tags proposed per note.
	DefaultSuggestions = 6

	// DefaultLambda is the MMR relevance weight: 1.0 selects on pure
	// relevance, 0.0 on pure diversity.
	DefaultLambda = 0.7

	// defaultTemperature keeps candidate generation close to the text.
	defaultTemperature = 0.2

	// taxonomyThreshold is the minimum cosine similarity for snapping a
	// selected tag to a controlled taxonomy term.
	taxonomyThreshold = 0.80

	// statCandidateCount is the n passed to StatCandidates; the ranking
	// returns up to twice this many terms.
	statCandidateCount = 20

	// Tag length bounds, in characters, applied after normalization.
	minTagLength = 3
	maxTagLength = 40
)

// Embedder produces document and candidate vectors. Implemented by embed.Cache.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Suggester proposes tags for note content.
//
// Suggester is safe for concurrent use by multiple goroutines.
type Suggester struct {
	g        *genkit.Genkit
	model    string
	embedder Embedder
	logger   *slog.Logger

	suggestions int
	lambda      float64
	temperature float32
	taxonomy    []string
}

// SuggesterOption configures a Suggester.
type SuggesterOption func(*Suggester)

// WithSuggestions sets how many tags Suggest returns.
func WithSuggestions(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.suggestions = n
		}
	}
}

// WithDiversity sets the MMR relevance weight lambda in [0,1].
func WithDiversity(lambda float64) SuggesterOption {
	return func(s *Suggester) {
		if lambda >= 0 && lambda <= 1 {
			s.lambda = lambda
		}
	}
}

// WithTaxonomy sets the controlled vocabulary selected tags are snapped to
// when close enough. Empty means no snapping.
func WithTaxonomy(terms ...string) SuggesterOption {
	return func(s *Suggester) {
		s.taxonomy = terms
	}
}

// WithTemperature sets the sampling temperature for candidate generation.
func WithTemperature(t float32) SuggesterOption {
	return func(s *Suggester) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// NewSuggester creates a Suggester using the given model for keyword
// candidates and the embedder for MMR selection.
func NewSuggester(g *genkit.Genkit, modelName string, embedder Embedder, logger *slog.Logger, opts ...SuggesterOption) (*Suggester, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Suggester{
		g:           g,
		model:       modelName,
		embedder:    embedder,
		logger:      logger,
		suggestions: DefaultSuggestions,
		lambda:      DefaultLambda,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Suggest proposes up to the configured number of tags for content. LLM and
// statistical candidates are merged LLM-first, normalized, deduplicated
// preserving order and length-filtered, then embedded and MMR-selected
// against the document vector (content, with summary as fallback). Provider
// failures degrade: a failed LLM call drops its candidates, a failed
// embedding becomes a zero vector. The only hard error is context
// cancellation.
func (s *Suggester) Suggest(ctx context.Context, content, summary string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	candidates := mergeCandidates(
		s.llmCandidates(ctx, content),
		StatCandidates(content, statCandidateCount),
	)
	if len(candidates) == 0 {
		return nil, nil
	}

	docVec, err := s.documentVector(ctx, content, summary)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(candidates))
	for i, c := range candidates {
		if vecs[i], err = s.embedOrZero(ctx, c); err != nil {
			return nil, err
		}
	}

	picked := SelectMMR(docVec, vecs, s.suggestions, s.lambda)
	tags := make([]string, 0, len(picked))
	for _, i := range picked {
		tags = append(tags, candidates[i])
	}

	tags, err = s.snapToTaxonomy(ctx, tags)
	if err != nil {
		return nil, err
	}
	return dedupe(tags), nil
}

// mergeCandidates normalizes and concatenates both candidate lists, keeping
// the first occurrence of each term and dropping terms outside the length
// bounds. LLM candidates come first, so they win the deduplication.
func mergeCandidates(llm, stat []string) []string {
	out := make([]string, 0, len(llm)+len(stat))
	seen := make(map[string]struct{}, len(llm)+len(stat))
	for _, c := range append(append([]string{}, llm...), stat...) {
		c = Normalize(c)
		if n := utf8.RuneCountInString(c); n < minTagLength || n > maxTagLength {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// documentVector embeds the content, falling back to the summary. With no
// embedding available at all it returns nil, which scores every candidate's
// relevance as zero and leaves selection to the diversity term.
func (s *Suggester) documentVector(ctx context.Context, content, summary string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("content embedding failed, trying summary", "error", err)
	}

	if summary = strings.TrimSpace(summary); summary != "" {
		vec, err = s.embedder.Embed(ctx, summary)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	s.logger.Warn("no document embedding available, selecting on diversity only")
	return nil, nil
}

// embedOrZero embeds text, degrading provider failures to a nil (zero-norm)
// vector. Context cancellation is the only error returned.
func (s *Suggester) embedOrZero(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("candidate embedding failed", "candidate", text, "error", err)
		return nil, nil
	}
	return vec, nil
}

// snapToTaxonomy replaces each tag with its most similar controlled term
// when that similarity reaches the snap threshold. Ties go to the earliest
// taxonomy term. Without a taxonomy the tags pass through unchanged.
func (s *Suggester) snapToTaxonomy(ctx context.Context, tags []string) ([]string, error) {
	if len(s.taxonomy) == 0 || len(tags) == 0 {
		return tags, nil
	}

	termVecs := make([][]float32, len(s.taxonomy))
	for i, term := range s.taxonomy {
		vec, err := s.embedOrZero(ctx, Normalize(term))
		if err != nil {
			return nil, err
		}
		termVecs[i] = vec
	}

	out := make([]string, 0, len(tags))
	for _, t := range tags {
		vec, err := s.embedOrZero(ctx, t)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			out = append(out, t)
			continue
		}

		best, bestSim := -1, 0.0
		for i, tv := range termVecs {
			if sim := Cosine(vec, tv); sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best >= 0 && bestSim >= taxonomyThreshold {
			out = append(out, s.taxonomy[best])
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// dedupe removes duplicates preserving first occurrence. Taxonomy snapping
// can map two selected tags onto the same term.
func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
