package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/note"
)

var (
	relationsNote      string
	relationsLimit     int
	relationType       string
	relationConfidence float64
	suggestThreshold   float64
	suggestTopK        int
)

var relationsCmd = &cobra.Command{
	Use:   "relations",
	Short: "Beheer relaties tussen notities",
	Long: `Relations beheert de getypeerde relaties tussen notities:
supersedes, supports, contradicts, related en duplicate.

Een supersedes-relatie archiveert de vervangen notitie; zoekresultaten
tonen daarna alleen nog de actuele versie.`,
}

var relationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Toon relaties, optioneel voor één notitie",
	Args:  cobra.NoArgs,
	RunE:  runRelationsList,
}

var relationsAddCmd = &cobra.Command{
	Use:   "add <bron-id> <doel-id>",
	Short: "Leg een relatie vast tussen twee notities",
	Args:  cobra.ExactArgs(2),
	RunE:  runRelationsAdd,
}

var relationsRmCmd = &cobra.Command{
	Use:   "rm <relatie-id>",
	Short: "Verwijder een relatie",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationsRm,
}

var relationsSuggestCmd = &cobra.Command{
	Use:   "suggest <notitie-id>",
	Short: "Stel relaties voor op basis van inhoudelijke gelijkenis",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationsSuggest,
}

func init() {
	relationsListCmd.Flags().StringVar(&relationsNote, "note", "", "only relations of this note")
	relationsListCmd.Flags().IntVar(&relationsLimit, "limit", 50, "maximum number of relations")

	relationsAddCmd.Flags().StringVar(&relationType, "type", string(note.RelationRelated),
		"relation type: supersedes, supports, contradicts, related or duplicate")
	relationsAddCmd.Flags().Float64Var(&relationConfidence, "confidence", 1.0, "relation confidence in [0,1]")

	relationsSuggestCmd.Flags().Float64Var(&suggestThreshold, "threshold", 0, "minimum similarity (default from store)")
	relationsSuggestCmd.Flags().IntVar(&suggestTopK, "top-k", 0, "maximum number of suggestions (default from store)")

	relationsCmd.AddCommand(relationsListCmd)
	relationsCmd.AddCommand(relationsAddCmd)
	relationsCmd.AddCommand(relationsRmCmd)
	relationsCmd.AddCommand(relationsSuggestCmd)
	rootCmd.AddCommand(relationsCmd)
}

func runRelationsList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		var (
			details []note.RelationDetail
			err     error
		)
		if relationsNote != "" {
			noteID, parseErr := uuid.Parse(relationsNote)
			if parseErr != nil {
				return fmt.Errorf("invalid note id %q: %w", relationsNote, parseErr)
			}
			details, err = a.Notes.ListRelationsForNote(ctx, noteID)
		} else {
			details, err = a.Notes.ListRelations(ctx, relationsLimit)
		}
		if err != nil {
			return fmt.Errorf("listing relations: %w", err)
		}
		if len(details) == 0 {
			fmt.Println("Geen relaties gevonden.")
			return nil
		}

		for _, d := range details {
			line := fmt.Sprintf("%s  %q %s %q", d.ID, d.SourceTitle, relationArrow(d.Type), d.TargetTitle)
			if suffix := confidenceSuffix(d.Confidence); suffix != "" {
				line += " " + suffix
			}
			fmt.Println(line)
		}
		return nil
	})
}

func runRelationsAdd(cmd *cobra.Command, args []string) error {
	sourceID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", args[0], err)
	}
	targetID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid target id %q: %w", args[1], err)
	}
	rtype, err := note.ParseRelationType(relationType)
	if err != nil {
		return err
	}
	if relationConfidence < 0 || relationConfidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", relationConfidence)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		rel, err := a.Notes.CreateRelation(ctx, sourceID, targetID, rtype, &relationConfidence)
		if err != nil {
			return fmt.Errorf("creating relation: %w", err)
		}
		fmt.Printf("Relatie vastgelegd: %s (%s)\n", rel.ID, rel.Type)
		if rtype == note.RelationSupersedes {
			fmt.Println("De vervangen notitie is gearchiveerd.")
		}
		return nil
	})
}

func runRelationsRm(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid relation id %q: %w", args[0], err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Notes.DeleteRelation(ctx, id); err != nil {
			return fmt.Errorf("deleting relation: %w", err)
		}
		fmt.Println("Relatie verwijderd.")
		return nil
	})
}

func runRelationsSuggest(cmd *cobra.Command, args []string) error {
	noteID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid note id %q: %w", args[0], err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		suggestions, err := a.Notes.SuggestRelations(ctx, noteID, suggestThreshold, suggestTopK)
		if err != nil {
			return fmt.Errorf("suggesting relations: %w", err)
		}
		if len(suggestions) == 0 {
			fmt.Println("Geen relatie-suggesties gevonden.")
			return nil
		}

		for _, s := range suggestions {
			fmt.Printf("%s  %s • %.2f\n", s.NoteID, s.Title, s.Similarity)
		}
		return nil
	})
}

// relationArrow renders a relation type as a compact arrow label for
// listings.
func relationArrow(t note.RelationType) string {
	return "-[" + string(t) + "]->"
}
