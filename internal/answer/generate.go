package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/koopa0/kennis/internal/search"
)

// defaultTemperature keeps answers close to the supplied sources.
const defaultTemperature = 0.2

// answerSystem is the care-assistant system prompt. Source statuses and
// citation rules mirror the labels BuildContext renders.
const answerSystem = `Je bent een kennisbank-assistent voor zorgprofessionals. Je krijgt een vraag en een set bronnen met hun status en relaties.

Richtlijnen:
- Baseer het kernantwoord op ACTUELE bronnen.
- Gebruik ondersteunende en gerelateerde bronnen alleen als extra context.
- Benoem expliciet wanneer bronnen VERVANGEN, CONCEPT of TEGENSTRIJDIG zijn.
- Verwijs naar bronnen uitsluitend met hun nummer [n].
- Zeg "Ik weet het niet" wanneer de bronnen de vraag niet beantwoorden.`

// answerPrompt lays out the user turn. %s placeholders: (1) question,
// (2) source block.
const answerPrompt = "Vraag: %s\n\nBronnen:\n%s"

// Result is a generated answer with the context it was grounded on.
type Result struct {
	// Answer is the model's cited answer. Empty when generation failed;
	// the matches and context are still usable.
	Answer string

	// Context is the rendered source block with citation numbering.
	Context Context

	// Matches are the search results the context was built from, in
	// citation order.
	Matches []search.Match
}

// Generator produces cited Dutch answers from search matches.
//
// Generator is safe for concurrent use by multiple goroutines.
type Generator struct {
	g           *genkit.Genkit
	model       string
	logger      *slog.Logger
	temperature float32
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTemperature sets the sampling temperature for answer generation.
func WithTemperature(t float32) GeneratorOption {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// NewGenerator creates a Generator using the given model.
func NewGenerator(g *genkit.Genkit, modelName string, logger *slog.Logger, opts ...GeneratorOption) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gen := &Generator{
		g:           g,
		model:       modelName,
		logger:      logger,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen, nil
}

// Answer builds the source block from matches and generates one cited answer
// to the question. A provider failure is logged and reported as an empty
// answer; the context and matches are preserved so callers can still show
// the sources.
func (gen *Generator) Answer(ctx context.Context, question string, matches []search.Match) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	c, err := BuildContext(matches)
	if err != nil {
		return Result{}, err
	}

	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.model),
		ai.WithSystem(answerSystem),
		ai.WithPrompt(fmt.Sprintf(answerPrompt, question, c.Sources)),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: genai.Ptr(gen.temperature)}),
	)
	if err != nil {
		gen.logger.Warn("answer generation failed", "error", err)
		return Result{Context: c, Matches: matches}, nil
	}

	return Result{
		Answer:  strings.TrimSpace(resp.Text()),
		Context: c,
		Matches: matches,
	}, nil
}
