// Package answer renders ranked, relation-annotated matches into a numbered,
// status-labeled Dutch source block and generates cited answers from it.
package answer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/search"
)

var (
	// ErrNoMatches is returned when there is nothing to cite. The assembler
	// never renders an empty source block; callers handle the empty result.
	ErrNoMatches = errors.New("no matches to build context from")

	// ErrEmptyQuestion is returned for empty or whitespace-only questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Status labels shown with every cited source.
const (
	LabelCurrent    = "ACTUEEL"
	LabelDraft      = "CONCEPT"
	LabelSuperseded = "VERVANGEN"
)

// Placeholder cites a related note that is not part of the result set and
// therefore has no citation number.
const Placeholder = "[?]"

// maxBodyRunes caps note content in a source entry when no summary exists.
const maxBodyRunes = 600

// dateLayout renders dates Dutch-style, day first.
const dateLayout = "02-01-2006"

// relationOrder fixes the clause order within every source entry.
var relationOrder = []note.RelationType{
	note.RelationSupersedes,
	note.RelationSupersededBy,
	note.RelationSupports,
	note.RelationContradicts,
	note.RelationRelated,
	note.RelationDuplicate,
}

// relationDescriptors are the Dutch clause labels per relation type.
var relationDescriptors = map[note.RelationType]string{
	note.RelationSupersedes:   "Vervangt",
	note.RelationSupersededBy: "Vervangen door",
	note.RelationSupports:     "Ondersteunt",
	note.RelationContradicts:  "Spreekt tegen",
	note.RelationRelated:      "Gerelateerd aan",
	note.RelationDuplicate:    "Duplicaat van",
}

// annotations label how an expanded match relates to the question.
var annotations = map[note.RelationType]string{
	note.RelationRelated:     "Gerelateerd",
	note.RelationSupports:    "Ondersteunt",
	note.RelationContradicts: "Tegenspreekt",
	note.RelationSupersedes:  "Vervangt",
	note.RelationDuplicate:   "Dupliceert",
}

// Context is a rendered source block with its citation numbering.
type Context struct {
	// Sources is the numbered, status-labeled source block, ready for
	// prompting or display.
	Sources string

	numbers map[uuid.UUID]int
}

// Number returns the 1-based citation number assigned to a note id.
func (c Context) Number(id uuid.UUID) (int, bool) {
	n, ok := c.numbers[id]
	return n, ok
}

// Citation renders a citation marker for a note id: "[n]" for notes in the
// result set, the placeholder for everything else.
func (c Context) Citation(id uuid.UUID) string {
	if n, ok := c.numbers[id]; ok {
		return fmt.Sprintf("[%d]", n)
	}
	return Placeholder
}

// StatusLabel derives the Dutch status label for a cited source. Precedence
// is fixed: any superseded_by entry or archived status wins (VERVANGEN),
// then draft (CONCEPT), then current (ACTUEEL).
func StatusLabel(status note.Status, relations note.RelationMap) string {
	switch {
	case len(relations[note.RelationSupersededBy]) > 0 || status == note.StatusArchived:
		return LabelSuperseded
	case status == note.StatusDraft:
		return LabelDraft
	default:
		return LabelCurrent
	}
}

// BuildContext renders matches into a numbered source block. Citation
// numbers are 1-based list positions in the supplied order; the assembler
// never re-sorts. The same input always renders the same block.
func BuildContext(matches []search.Match) (Context, error) {
	if len(matches) == 0 {
		return Context{}, ErrNoMatches
	}

	numbers := make(map[uuid.UUID]int, len(matches))
	for i, m := range matches {
		if _, dup := numbers[m.ID]; dup {
			continue
		}
		numbers[m.ID] = i + 1
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeEntry(&b, i+1, m, numbers)
	}

	return Context{Sources: b.String(), numbers: numbers}, nil
}

// writeEntry renders one source: header with status label, optional score,
// expansion annotation and metadata, the summary (or truncated content), and
// one clause per relation-map type in fixed order.
func writeEntry(b *strings.Builder, num int, m search.Match, numbers map[uuid.UUID]int) {
	fmt.Fprintf(b, "[%d] %s (%s)", num, m.Title, StatusLabel(m.Status, m.Relations))

	if m.Score != nil {
		fmt.Fprintf(b, "\nRelevantie: %.2f", *m.Score)
	}
	if m.Relation != "" {
		fmt.Fprintf(b, "\nRelatie tot vraag: %s", annotation(m.Relation))
	}
	if !m.UpdatedAt.IsZero() {
		fmt.Fprintf(b, "\nDatum: %s", m.UpdatedAt.Format(dateLayout))
	}
	if m.Author != "" {
		fmt.Fprintf(b, "\nAuteur: %s", m.Author)
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(b, "\nTags: %s", strings.Join(m.Tags, ", "))
	}
	if body := entryBody(m.Note); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}

	for _, typ := range relationOrder {
		ids := m.Relations[typ]
		if len(ids) == 0 {
			continue
		}
		refs := make([]string, len(ids))
		for j, id := range ids {
			refs[j] = cite(numbers, id)
		}
		fmt.Fprintf(b, "\n%s: %s", relationDescriptors[typ], strings.Join(refs, ", "))
	}
}

func cite(numbers map[uuid.UUID]int, id uuid.UUID) string {
	if n, ok := numbers[id]; ok {
		return fmt.Sprintf("[%d]", n)
	}
	return Placeholder
}

func annotation(t note.RelationType) string {
	if label, ok := annotations[t]; ok {
		return label
	}
	return string(t)
}

// entryBody returns the note's summary, or its content truncated to
// maxBodyRunes when no summary exists.
func entryBody(n note.Note) string {
	if s := strings.TrimSpace(n.Summary); s != "" {
		return s
	}
	c := strings.TrimSpace(n.Content)
	if runes := []rune(c); len(runes) > maxBodyRunes {
		return string(runes[:maxBodyRunes]) + "..."
	}
	return c
}
