package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/config"
	"github.com/koopa0/kennis/internal/search"
)

var (
	askTopK     int
	askEntity   string
	askNoExpand bool
	askPlain    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [vraag]",
	Short: "Beantwoord een vraag op basis van de kennisbank",
	Long: `Ask zoekt de meest relevante actuele notities, volgt hun relaties en
genereert een antwoord met bronverwijzingen.

Voorbeelden:
  kennis ask "Wat is het wondzorgprotocol voor diabetische voeten?"
  kennis ask --entity client="mevrouw De Vries" "Welke afspraken gelden er?"
  kennis ask --top-k 3 --no-expand "Wat zijn de valpreventie-richtlijnen?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "maximum number of direct matches (default from config)")
	askCmd.Flags().StringVar(&askEntity, "entity", "", "filter on an entity, as type=value[,value...]")
	askCmd.Flags().BoolVar(&askNoExpand, "no-expand", false, "skip relation expansion")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "plain output without markdown styling")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("vraag is leeg")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		opts, err := searchOptions(a.Config)
		if err != nil {
			return err
		}

		matches, err := a.Searcher.Search(ctx, question, opts...)
		if err != nil {
			return fmt.Errorf("searching notes: %w", err)
		}
		if len(matches) == 0 {
			fmt.Println("Geen notities gevonden die bij deze vraag passen.")
			return nil
		}

		res, err := a.Generator.Answer(ctx, question, matches)
		if err != nil {
			return fmt.Errorf("generating answer: %w", err)
		}

		printAnswer(res, askPlain)
		return nil
	})
}

// searchOptions translates the ask flags and configuration into search
// options. Flags win over configuration.
func searchOptions(cfg *config.Config) ([]search.Option, error) {
	topK := cfg.SearchTopK
	if askTopK > 0 {
		topK = askTopK
	}

	opts := []search.Option{
		search.WithTopK(topK),
		search.WithRelatedLimit(cfg.SearchRelatedLimit),
	}

	if askEntity != "" {
		entityType, values, err := parseEntityFilter(askEntity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithEntityFilter(entityType, values...))
	}

	if askNoExpand {
		opts = append(opts, search.WithoutExpansion())
	}

	return opts, nil
}

// parseEntityFilter parses an --entity flag value of the form
// "type=value[,value...]". Values are optional: "client=" and "client"
// match any note linked to an entity of that type.
func parseEntityFilter(s string) (entityType string, values []string, err error) {
	entityType, rest, found := strings.Cut(s, "=")
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		return "", nil, fmt.Errorf("invalid entity filter %q: expected type=value", s)
	}
	if !found || strings.TrimSpace(rest) == "" {
		return entityType, nil, nil
	}

	for _, v := range strings.Split(rest, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return entityType, values, nil
}
