package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/note"
)

var (
	saveTitle  string
	saveFile   string
	saveURL    string
	saveTags   []string
	saveStatus string
	saveAuthor string
	saveYes    bool
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Sla een notitie op in de kennisbank",
	Long: `Save leest de inhoud uit een bestand, van stdin of van een webpagina,
verrijkt de notitie met een samenvatting, tags en entiteiten, en stelt
relaties met bestaande notities voor.

Voorbeelden:
  kennis save --title "Wondzorgprotocol 2025" --file protocol.md
  cat overdracht.txt | kennis save --title "Overdracht nachtdienst" --author "J. Jansen"
  kennis save --url https://richtlijnen.example/decubitus --tags wondzorg`,
	Args: cobra.NoArgs,
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVar(&saveTitle, "title", "", "note title (required unless --url provides one)")
	saveCmd.Flags().StringVar(&saveFile, "file", "", "read content from a file")
	saveCmd.Flags().StringVar(&saveURL, "url", "", "import content from a web page")
	saveCmd.Flags().StringSliceVar(&saveTags, "tags", nil, "tags to attach (comma separated)")
	saveCmd.Flags().StringVar(&saveStatus, "status", "", "note status: draft, published or archived (default draft)")
	saveCmd.Flags().StringVar(&saveAuthor, "author", "", "note author")
	saveCmd.Flags().BoolVarP(&saveYes, "yes", "y", false, "accept all relation suggestions")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	if saveFile != "" && saveURL != "" {
		return fmt.Errorf("--file and --url are mutually exclusive")
	}

	status := note.StatusDraft
	if saveStatus != "" {
		parsed, err := note.ParseStatus(saveStatus)
		if err != nil {
			return err
		}
		status = parsed
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		title, content, author, err := noteContent(ctx, a)
		if err != nil {
			return err
		}
		if title == "" {
			return fmt.Errorf("--title is required")
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("notitie-inhoud is leeg")
		}

		draft := note.NewNote{
			Title:   title,
			Content: content,
			Author:  author,
			Status:  status,
			Tags:    saveTags,
		}

		// Enrichment failures degrade to an unenriched note.
		enr, err := a.Enricher.Enrich(ctx, title, content)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			fmt.Fprintln(os.Stderr, "Verrijking mislukt; notitie wordt zonder samenvatting opgeslagen.")
		default:
			draft.Summary = enr.Summary
			draft.Entities = enr.Entities
			draft.Tags = append(draft.Tags, enr.Tags...)
		}

		created, err := a.Notes.Create(ctx, draft)
		if err != nil {
			return fmt.Errorf("creating note: %w", err)
		}

		fmt.Printf("✅ Notitie opgeslagen: %s\n", created.Note.Title)
		fmt.Printf("   ID: %s\n", created.Note.ID)
		fmt.Printf("   Status: %s\n", displayStatus(created.Note.Status))
		if created.Note.Summary != "" {
			fmt.Printf("   Samenvatting: %s\n", created.Note.Summary)
		}
		if len(created.Note.Tags) > 0 {
			fmt.Printf("   Tags: %s\n", strings.Join(created.Note.Tags, ", "))
		}

		return suggestAndLink(ctx, a, created.Note.ID)
	})
}

// noteContent resolves the note title, content and author from --url,
// --file or stdin, in that order of precedence. A fetched article supplies
// the title and byline when the flags leave them empty.
func noteContent(ctx context.Context, a *app.App) (title, content, author string, err error) {
	title = strings.TrimSpace(saveTitle)
	author = strings.TrimSpace(saveAuthor)

	switch {
	case saveURL != "":
		article, fetchErr := a.Fetcher.Article(ctx, saveURL)
		if fetchErr != nil {
			return "", "", "", fmt.Errorf("fetching %s: %w", saveURL, fetchErr)
		}
		if title == "" {
			title = article.Title
		}
		if author == "" {
			author = article.Byline
		}
		content = article.Text
	case saveFile != "":
		data, readErr := os.ReadFile(saveFile)
		if readErr != nil {
			return "", "", "", fmt.Errorf("reading %s: %w", saveFile, readErr)
		}
		content = string(data)
	default:
		data, readErr := io.ReadAll(os.Stdin)
		if readErr != nil {
			return "", "", "", fmt.Errorf("reading stdin: %w", readErr)
		}
		content = string(data)
	}

	return title, content, author, nil
}

// suggestAndLink prints relation suggestions for the new note. With --yes
// every suggestion is stored as a "related" relation, its similarity as
// confidence.
func suggestAndLink(ctx context.Context, a *app.App, noteID uuid.UUID) error {
	suggestions, err := a.Notes.SuggestRelations(ctx, noteID, 0, 0)
	if err != nil {
		// Suggestions are best-effort; the note itself is already saved.
		slog.Debug("relation suggestions unavailable", "note_id", noteID, "error", err)
		return nil
	}
	if len(suggestions) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Gerelateerde notities:")
	for _, s := range suggestions {
		fmt.Printf("  %s • %.2f\n", s.Title, s.Similarity)
	}

	if !saveYes {
		fmt.Println()
		fmt.Println("Gebruik 'kennis relations add' om een relatie vast te leggen, of 'kennis save --yes' om suggesties direct te accepteren.")
		return nil
	}

	added := 0
	for _, s := range suggestions {
		confidence := s.Similarity
		_, err := a.Notes.CreateRelation(ctx, noteID, s.NoteID, note.RelationRelated, &confidence)
		if err != nil {
			slog.Warn("storing suggested relation failed", "target", s.NoteID, "error", err)
			continue
		}
		added++
	}
	if added > 0 {
		fmt.Println()
		fmt.Printf("%d relatie(s) toegevoegd voor deze notitie.\n", added)
	}
	return nil
}
