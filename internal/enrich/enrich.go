// Package enrich derives a summary, tags, and entity references for a note
// before it is stored. The three derivations are independent: when the model
// is unavailable the result degrades to whatever could still be computed.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/koopa0/kennis/internal/note"
)

// maxChunkChars caps a summarization chunk. Paragraphs are packed greedily;
// a single paragraph over the cap still becomes its own chunk.
const maxChunkChars = 6000

// maxEntities bounds the extracted entity list per note.
const maxEntities = 8

// maxResponseBytes limits LLM response size before JSON parsing (10 KB).
const maxResponseBytes = 10 * 1024

const defaultTemperature = 0.2

const summarySystem = "Vat bondig samen in zorg- en IT-context."

// summaryPrompt wraps one chunk. %s placeholder: chunk text.
const summaryPrompt = `Antwoord uitsluitend met JSON: {"summary": "..."}

Tekst:
%s`

const combineSystem = "Combineer de bullets tot één samenvatting in zorg- en IT-context."

// combinePrompt wraps the per-chunk bullet list. %s placeholder: bullets.
const combinePrompt = `Antwoord uitsluitend met JSON: {"summary": "..."}

Bullets:
%s`

const entitySystem = "Extraheer relevante entiteiten voor een zorg-kennisbank. " +
	"Geef per entiteit een type (bijv. app/proces/rol/locatie), de originele waarde en een genormaliseerde vorm."

// entityPrompt asks for a bounded JSON entity list.
// %d placeholder: entity cap. %s placeholder: note text.
const entityPrompt = `Extraheer maximaal %d entiteiten uit de onderstaande notitie.

Antwoord uitsluitend met JSON:
{"entities": [{"entity_type": "...", "value": "...", "canonical_value": "..."}]}

Notitie:
%s`

// Tagger suggests tags for note content. *tag.Suggester implements it.
type Tagger interface {
	Suggest(ctx context.Context, content, summary string) ([]string, error)
}

// Result carries the derived fields for a note. Fields that could not be
// derived stay empty.
type Result struct {
	Summary  string
	Tags     []string
	Entities []note.EntityRef
}

// Enricher runs the summary, entity, and tag derivations for new notes.
//
// Enricher is safe for concurrent use by multiple goroutines.
type Enricher struct {
	g           *genkit.Genkit
	model       string
	tagger      Tagger
	logger      *slog.Logger
	temperature float32
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTemperature overrides the generation temperature.
func WithTemperature(t float32) Option {
	return func(e *Enricher) {
		if t >= 0 {
			e.temperature = t
		}
	}
}

// New creates an Enricher using the given model for summaries and entity
// extraction and the tagger for tag suggestions.
func New(g *genkit.Genkit, modelName string, tagger Tagger, logger *slog.Logger, opts ...Option) (*Enricher, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if tagger == nil {
		return nil, fmt.Errorf("tagger is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{
		g:           g,
		model:       modelName,
		tagger:      tagger,
		logger:      logger,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich derives summary, entities, and tags for the given note content.
// Provider failures degrade the affected field to its zero value; context
// cancellation is the only hard error. Empty content yields an empty result.
func (e *Enricher) Enrich(ctx context.Context, title, content string) (Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Result{}, nil
	}

	var res Result
	res.Summary = e.summarize(ctx, content)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res.Entities = e.entities(ctx, title, content)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tags, err := e.tagger.Suggest(ctx, content, res.Summary)
	if err != nil {
		return Result{}, err
	}
	res.Tags = tags
	return res, nil
}

// summarize condenses content chunk by chunk. Failed chunks are skipped; a
// single surviving partial is returned as-is, multiple partials go through a
// combine pass.
func (e *Enricher) summarize(ctx context.Context, content string) string {
	chunks := splitChunks(content, maxChunkChars)
	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		var out struct {
			Summary string `json:"summary"`
		}
		if err := e.generateJSON(ctx, summarySystem, fmt.Sprintf(summaryPrompt, chunk), &out); err != nil {
			e.logger.Warn("chunk summarization failed", "error", err)
			continue
		}
		if s := strings.TrimSpace(out.Summary); s != "" {
			partials = append(partials, s)
		}
	}

	switch len(partials) {
	case 0:
		return ""
	case 1:
		return partials[0]
	}

	bullets := make([]string, len(partials))
	for i, p := range partials {
		bullets[i] = "- " + p
	}
	joined := strings.Join(bullets, "\n")

	var out struct {
		Summary string `json:"summary"`
	}
	if err := e.generateJSON(ctx, combineSystem, fmt.Sprintf(combinePrompt, joined), &out); err != nil {
		e.logger.Warn("summary combine failed, keeping bullet list", "error", err)
		return joined
	}
	if s := strings.TrimSpace(out.Summary); s != "" {
		return s
	}
	return joined
}

// entities extracts typed entity references from the note. The title, when
// present, is prepended so the model can canonicalize names it introduces.
func (e *Enricher) entities(ctx context.Context, title, content string) []note.EntityRef {
	doc := content
	if title = strings.TrimSpace(title); title != "" {
		doc = "Titel: " + title + "\n\n" + content
	}

	var out struct {
		Entities []struct {
			Type      string `json:"entity_type"`
			Value     string `json:"value"`
			Canonical string `json:"canonical_value"`
		} `json:"entities"`
	}
	if err := e.generateJSON(ctx, entitySystem, fmt.Sprintf(entityPrompt, maxEntities, doc), &out); err != nil {
		e.logger.Warn("entity extraction failed", "error", err)
		return nil
	}

	refs := make([]note.EntityRef, 0, min(len(out.Entities), maxEntities))
	for _, it := range out.Entities {
		value := strings.TrimSpace(it.Value)
		if value == "" {
			continue
		}
		typ := strings.TrimSpace(it.Type)
		if typ == "" {
			typ = "onbekend"
		}
		canonical := strings.ToLower(strings.TrimSpace(it.Canonical))
		if canonical == "" {
			canonical = strings.ToLower(value)
		}
		refs = append(refs, note.EntityRef{Type: typ, Value: value, Canonical: canonical})
		if len(refs) == maxEntities {
			break
		}
	}
	return refs
}

// generateJSON runs one model call and unmarshals the JSON response into out.
func (e *Enricher) generateJSON(ctx context.Context, system, prompt string, out any) error {
	resp, err := genkit.Generate(ctx, e.g,
		ai.WithModelName(e.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: genai.Ptr(e.temperature)}),
	)
	if err != nil {
		return err
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return fmt.Errorf("empty response")
	}
	if len(raw) > maxResponseBytes {
		return fmt.Errorf("response too large: %d bytes", len(raw))
	}
	return json.Unmarshal([]byte(stripCodeFences(raw)), out)
}

// splitChunks packs trimmed paragraphs greedily into chunks of at most
// maxChars runes, counting the two-newline separator.
func splitChunks(text string, maxChars int) []string {
	var (
		chunks []string
		cur    string
		curLen int
	)
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pLen := utf8.RuneCountInString(p)
		switch {
		case cur == "":
			cur, curLen = p, pLen
		case curLen+pLen+2 <= maxChars:
			cur += "\n\n" + p
			curLen += pLen + 2
		default:
			chunks = append(chunks, cur)
			cur, curLen = p, pLen
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// stripCodeFences removes ```json ... ``` wrapping from LLM output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
