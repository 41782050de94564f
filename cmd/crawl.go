package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/report"
)

func newCrawlCmd() *cobra.Command {
	var passID string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl pass over the configured site list",
		Long: `Resolves robots.txt for every listed domain, fetches and classifies the
declared sitemaps (expanding indexes up to the configured depth), and persists
each artifact to the state store. Re-running with --pass resumes an
interrupted pass without re-fetching completed artifacts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			startMetricsServer(cmd, a)

			sites, err := readSites(a.Config.Crawl.SitesFile)
			if err != nil {
				return err
			}
			id, err := resolvePassID(passID)
			if err != nil {
				return err
			}

			a.Logger.Info("starting crawl pass",
				zap.String("pass_id", id),
				zap.Int("domains", len(sites)),
			)
			outcome, err := buildOrchestrator(a).Run(cmd.Context(), id, sites)
			if err != nil {
				return fmt.Errorf("crawl pass %s: %w", id, err)
			}

			return buildReporter(a).Finish(cmd.Context(), report.Build(outcome, nil))
		},
	}

	cmd.Flags().StringVar(&passID, "pass", "", "pass ID to resume (default: new pass)")
	return cmd
}
