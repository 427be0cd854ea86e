package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkazmin/tileharvest/internal/pipeline"
)

var (
	harvestYear   int
	previewWidth  int
	withPreviews  bool
	withSummaries bool
	harvestDryRun bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the full pipeline: filter feed, fetch imagery, publish records",
	Long: `Harvest processes every firing position verified in the target year:
- Ensure the event feed is cached locally (fetching only when absent)
- Filter features by year and category
- Request a processed Sentinel-2 chip around each position
- Publish metadata and imagery as Airtable rows

Per-feature failures are logged and skipped; the run continues.

Example:
  tileharvest harvest --year 2023
  tileharvest harvest --year 2023 --preview --summary
  tileharvest harvest --dry-run`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().IntVar(&harvestYear, "year", 0, "target year (default from config)")
	harvestCmd.Flags().BoolVar(&withPreviews, "preview", false, "render JPEG previews of saved chips")
	harvestCmd.Flags().IntVar(&previewWidth, "preview-width", 256, "max preview width in pixels")
	harvestCmd.Flags().BoolVar(&withSummaries, "summary", false, "generate analyst notes with an LLM")
	harvestCmd.Flags().BoolVar(&harvestDryRun, "dry-run", false, "stop after filtering, publish nothing")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := buildConfig()
	cfg.Summary.Enabled = withSummaries

	year := harvestYear
	if year == 0 {
		year = cfg.Feed.Year
	}

	opts := pipeline.Options{DryRun: harvestDryRun}
	if withPreviews {
		opts.PreviewWidth = previewWidth
	}

	h := pipeline.NewHarvester(cfg, os.Stderr, opts)
	stats, err := h.Run(ctx, year)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Processed %d/%d positions (log: %s)\n",
		stats.Published, stats.Total, stats.LogPath)
	return nil
}
