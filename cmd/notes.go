package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/note"
)

// displayTime is the Dutch date format for listings.
const displayTime = "02-01-2006 15:04"

var notesLimit int

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Bekijk notities in de kennisbank",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Toon de meest recente notities",
	Args:  cobra.NoArgs,
	RunE:  runNotesList,
}

var notesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Toon een notitie met relaties en entiteiten",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotesShow,
}

func init() {
	notesListCmd.Flags().IntVar(&notesLimit, "limit", 20, "maximum number of notes")
	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesShowCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		notes, err := a.Notes.List(ctx, notesLimit)
		if err != nil {
			return fmt.Errorf("listing notes: %w", err)
		}
		if len(notes) == 0 {
			fmt.Println("Nog geen notities gevonden.")
			return nil
		}

		for _, n := range notes {
			fmt.Printf("%s  %-12s  %s  %s\n",
				n.ID, displayStatus(n.Status), n.UpdatedAt.Format(displayTime), n.Title)
		}
		return nil
	})
}

func runNotesShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid note id %q: %w", args[0], err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		detail, err := a.Notes.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("loading note: %w", err)
		}
		printDetail(ctx, a, detail)
		return nil
	})
}

// printDetail renders a note with its relations and entities.
func printDetail(ctx context.Context, a *app.App, d note.Detail) {
	n := d.Note

	fmt.Println(headingStyle.Render(n.Title))
	fmt.Printf("Status: %s\n", displayStatus(n.Status))
	if n.Author != "" {
		fmt.Printf("Auteur: %s\n", n.Author)
	}
	fmt.Printf("Aangemaakt: %s\n", n.CreatedAt.Format(displayTime))
	fmt.Printf("Bijgewerkt: %s\n", n.UpdatedAt.Format(displayTime))
	if len(n.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(n.Tags, ", "))
	}
	if n.Summary != "" {
		fmt.Println()
		fmt.Println(faintStyle.Render(n.Summary))
	}

	fmt.Println()
	fmt.Println(newMarkdownRenderer().Render(n.Content))

	if len(d.Entities) > 0 {
		fmt.Println()
		fmt.Println("Entiteiten:")
		for _, e := range d.Entities {
			line := fmt.Sprintf("  %s: %s", e.Type, e.Value)
			if e.Role != "" {
				line += " (" + e.Role + ")"
			}
			fmt.Println(line)
		}
	}

	if len(d.Relations) > 0 {
		fmt.Println()
		fmt.Println("Relaties:")
		titles := relationTargetTitles(ctx, a, d.Relations)
		for _, r := range d.Relations {
			target := titles[r.TargetID]
			if target == "" {
				target = r.TargetID.String()
			}
			line := fmt.Sprintf("  %s: %s", relationVerb(r.Type), target)
			if suffix := confidenceSuffix(r.Confidence); suffix != "" {
				line += " " + suffix
			}
			fmt.Println(line)
		}
	}
}

// relationTargetTitles resolves target note titles for display. Missing
// notes fall back to their id.
func relationTargetTitles(ctx context.Context, a *app.App, relations []note.Relation) map[uuid.UUID]string {
	ids := make([]uuid.UUID, 0, len(relations))
	for _, r := range relations {
		ids = append(ids, r.TargetID)
	}
	found, err := a.Notes.GetBulk(ctx, ids)
	if err != nil {
		return nil
	}
	titles := make(map[uuid.UUID]string, len(found))
	for id, n := range found {
		titles[id] = n.Title
	}
	return titles
}

// relationVerbs are the Dutch clause labels per relation type, matching the
// wording of the answer context.
var relationVerbs = map[note.RelationType]string{
	note.RelationSupersedes:   "Vervangt",
	note.RelationSupersededBy: "Vervangen door",
	note.RelationSupports:     "Ondersteunt",
	note.RelationContradicts:  "Spreekt tegen",
	note.RelationRelated:      "Gerelateerd aan",
	note.RelationDuplicate:    "Duplicaat van",
}

func relationVerb(t note.RelationType) string {
	if v, ok := relationVerbs[t]; ok {
		return v
	}
	return string(t)
}

// confidenceSuffix renders a relation confidence as "(0.87)", or nothing
// for the default confidence.
func confidenceSuffix(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("(%.2f)", *c)
}
