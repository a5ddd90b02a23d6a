package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/note"
)

// renderWidth is the word-wrap width for terminal markdown output.
const renderWidth = 100

// markdownRenderer converts markdown to styled terminal output.
// A nil renderer degrades to plain text.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

// newMarkdownRenderer creates a renderer with terminal-appropriate styling.
// Returns a renderer that passes text through unchanged if glamour fails to
// initialize.
func newMarkdownRenderer() *markdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

// Render converts markdown to styled terminal output.
// Returns the original text if rendering fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}

	// Trim trailing newlines added by glamour
	return strings.TrimSuffix(rendered, "\n")
}

// Terminal styles for command output.
var (
	headingStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	currentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("40"))
	draftStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	supersededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// styleLabel colors a source status label (ACTUEEL, CONCEPT, VERVANGEN).
func styleLabel(label string, plain bool) string {
	if plain {
		return label
	}
	switch label {
	case answer.LabelCurrent:
		return currentStyle.Render(label)
	case answer.LabelDraft:
		return draftStyle.Render(label)
	case answer.LabelSuperseded:
		return supersededStyle.Render(label)
	}
	return label
}

// statusLabels maps note statuses to their Dutch display labels.
var statusLabels = map[note.Status]string{
	note.StatusDraft:     "Concept",
	note.StatusPublished: "Gepubliceerd",
	note.StatusArchived:  "Archief",
}

// displayStatus returns the Dutch label for a note status.
func displayStatus(s note.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// styleSources colors the status labels on the numbered header lines of a
// source block. Other lines are left untouched.
func styleSources(sources string) string {
	lines := strings.Split(sources, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		for _, label := range []string{answer.LabelCurrent, answer.LabelDraft, answer.LabelSuperseded} {
			marker := "(" + label + ")"
			if strings.HasSuffix(line, marker) {
				lines[i] = strings.TrimSuffix(line, marker) + "(" + styleLabel(label, false) + ")"
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// printAnswer writes a generated answer and its source block to stdout.
// With plain output the markdown and styling are skipped so the result
// stays pipeable.
func printAnswer(res answer.Result, plain bool) {
	text := res.Answer
	if text == "" {
		text = "Geen antwoord beschikbaar."
	}

	if plain {
		fmt.Println(text)
		fmt.Println()
		fmt.Println("Bronnen")
		fmt.Println()
		fmt.Println(res.Context.Sources)
		return
	}

	md := newMarkdownRenderer()
	fmt.Println(md.Render(text))
	fmt.Println()
	fmt.Println(headingStyle.Render("Bronnen"))
	fmt.Println()
	fmt.Println(styleSources(res.Context.Sources))
}
