package tag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// maxLLMCandidates bounds the LLM keyword list per note.
const maxLLMCandidates = 20

// maxCandidateResponseBytes limits LLM response size before JSON parsing (10 KB).
const maxCandidateResponseBytes = 10 * 1024

// candidateSystem primes the model for care-domain keyword extraction.
const candidateSystem = "Extraheer trefwoorden voor een zorg-kennisbank."

// candidatePrompt asks for a bounded JSON keyword list.
// %d placeholder: candidate count. %s placeholder: note content.
const candidatePrompt = `Genereer maximaal %d trefwoordkandidaten voor de onderstaande notitie.

Regels:
- Korte termen van 1-3 woorden, kleine letters
- Geen zinnen, geen uitleg
- Antwoord uitsluitend met JSON: {"candidates": ["..."]}

Notitie:
%s`

// llmCandidates asks the model for keyword candidates. Any failure (provider
// error, oversized or malformed response) degrades to an empty list; the
// statistical candidates still feed the selector.
func (s *Suggester) llmCandidates(ctx context.Context, text string) []string {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.model),
		ai.WithSystem(candidateSystem),
		ai.WithPrompt(fmt.Sprintf(candidatePrompt, maxLLMCandidates, text)),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: genai.Ptr(s.temperature)}),
	)
	if err != nil {
		s.logger.Warn("keyword candidate generation failed", "error", err)
		return nil
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil
	}
	if len(raw) > maxCandidateResponseBytes {
		s.logger.Warn("keyword candidate response too large", "bytes", len(raw))
		return nil
	}

	var out struct {
		Candidates []string `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		s.logger.Warn("keyword candidate response was not valid JSON", "error", err)
		return nil
	}

	cands := make([]string, 0, min(len(out.Candidates), maxLLMCandidates))
	for _, c := range out.Candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c == "" {
			continue
		}
		cands = append(cands, c)
		if len(cands) == maxLLMCandidates {
			break
		}
	}
	return cands
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
