package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSearchCmd() *cobra.Command {
	var phrase string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Scans the stored sitemap collection for the target phrase",
		Long: `Walks every persisted urlset artifact and scans the bytes beyond each
artifact's cursor for the configured phrase. Unchanged artifacts cost nothing
on re-runs; matches and advanced cursors are written back to the state store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			startMetricsServer(cmd, a)

			if phrase != "" {
				a.Config.Search.Phrase = phrase
			}
			if a.Config.Search.Phrase == "" {
				return fmt.Errorf("no phrase configured; set search.phrase or pass --phrase")
			}

			result, err := buildSearcher(a).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			a.Logger.Info("search finished",
				zap.String("phrase", result.Phrase),
				zap.Int("artifacts_scanned", result.ArtifactsScanned),
				zap.Int("artifacts_up_to_date", result.ArtifactsUpToDate),
				zap.Int64("bytes_scanned", result.BytesScanned),
				zap.Int("new_matches", len(result.NewMatches)),
			)
			for _, m := range result.NewMatches {
				fmt.Printf("%s @ %d: %s\n", m.URL, m.Offset, m.Context)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&phrase, "phrase", "", "phrase to search for (overrides config)")
	return cmd
}
