package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/report"
)

func newHuntCmd() *cobra.Command {
	var (
		passID string
		phrase string
	)

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Runs a full pass: crawl the site list, then search it",
		Long: `Runs the crawl and search phases back to back and emits one combined
pass report: which domains were reached, what was fetched, and where the
phrase appeared. This is the normal scheduled entry point.`,
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

			sites, err := readSites(a.Config.Crawl.SitesFile)
			if err != nil {
				return err
			}
			id, err := resolvePassID(passID)
			if err != nil {
				return err
			}

			a.Logger.Info("starting hunt pass",
				zap.String("pass_id", id),
				zap.Int("domains", len(sites)),
				zap.String("phrase", a.Config.Search.Phrase),
			)

			outcome, err := buildOrchestrator(a).Run(cmd.Context(), id, sites)
			if err != nil {
				return fmt.Errorf("crawl pass %s: %w", id, err)
			}

			// The search phase still runs after a pass budget expiry: artifacts
			// persisted before the cutoff are worth scanning now.
			result, err := buildSearcher(a).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("search pass %s: %w", id, err)
			}

			rep := report.Build(outcome, result)
			if err := buildReporter(a).Finish(cmd.Context(), rep); err != nil {
				return err
			}

			for _, m := range result.NewMatches {
				fmt.Printf("%s @ %d: %s\n", m.URL, m.Offset, m.Context)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passID, "pass", "", "pass ID to resume (default: new pass)")
	cmd.Flags().StringVar(&phrase, "phrase", "", "phrase to search for (overrides config)")
	return cmd
}
