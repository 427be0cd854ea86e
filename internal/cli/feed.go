package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkazmin/tileharvest/internal/feed"
	"github.com/dkazmin/tileharvest/internal/logging"
)

var (
	listYear int
	listJSON bool
)

// feedCmd groups feed-cache operations
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Inspect and refresh the cached event feed",
}

// feedFetchCmd forces a re-download of the feed cache. The harvest path
// itself never refreshes an existing cache.
var feedFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the event feed and overwrite the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		log := logging.New(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

		loader := feed.NewLoader(cfg, log)
		path, err := loader.FetchAndCache(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Cached feed at %s\n", path)
		return nil
	},
}

// feedListCmd prints the filtered features without touching imagery or the store
var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List firing positions matching the year filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		log := logging.New(os.Stderr, slog.LevelWarn, cfg.Log.Format)

		year := listYear
		if year == 0 {
			year = cfg.Feed.Year
		}

		loader := feed.NewLoader(cfg, log)
		features, err := loader.FiringPositions(context.Background(), year)
		if err != nil {
			return err
		}

		if listJSON {
			return json.NewEncoder(os.Stdout).Encode(features)
		}

		for _, f := range features {
			lon, lat, err := feed.ExtractCoordinates(f)
			if err != nil {
				fmt.Printf("%-14s %-12s (no point geometry) %s\n",
					f.Properties.ID, f.Properties.VerifiedDate, f.Properties.City)
				continue
			}
			fmt.Printf("%-14s %-12s %.6f,%.6f %s\n",
				f.Properties.ID, f.Properties.VerifiedDate, lon, lat, f.Properties.City)
		}
		fmt.Fprintf(os.Stderr, "%d positions for %d\n", len(features), year)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedFetchCmd)
	feedCmd.AddCommand(feedListCmd)

	feedListCmd.Flags().IntVar(&listYear, "year", 0, "target year (default from config)")
	feedListCmd.Flags().BoolVar(&listJSON, "json", false, "emit JSON instead of a table")
}
