package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragcrawl/internal/app"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <config-id>",
	Short: "Run one crawl for a tenant's scraper config",
	Long: `Crawls the sites described by the scraper config, stores new and changed
pages, and ingests them before returning. The session is recorded in
crawl_progress like crawls started through the API.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().String("tenant", "", "tenant id (required)")
	_ = crawlCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	configID := args[0]

	return withApp(cmd, func(a *app.App) error {
		cmd.Printf("Crawling %s for tenant %s...\n", configID, tenantID)
		res, p, err := a.Crawls.Run(cmd.Context(), tenantID, configID)
		if p != nil {
			cmd.Printf("Session %s: %s\n", p.ID, p.Status)
			cmd.Printf("  pages     found=%d scraped=%d skipped=%d failed=%d\n",
				p.PagesFound, p.PagesScraped, p.PagesSkipped, p.PagesFailed)
			cmd.Printf("  documents created=%d updated=%d unchanged=%d\n",
				p.DocumentsCreated, p.DocumentsUpdated, p.DocumentsUnchanged)
			cmd.Printf("  ingestion completed=%d failed=%d\n", p.IngestionCompleted, p.IngestionFailed)
		}
		if res != nil {
			cmd.Printf("  took %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
		}
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		return nil
	})
}
