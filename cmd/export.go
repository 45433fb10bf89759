package cmd

import (
	"fmt"
	"log/slog"

	"github.com/inovacc/redditharvest/internal/export"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records to CSV without scraping",
	Long: `Write per-subreddit CSV files from the local store. Useful for
regenerating output after deleting files, or for exporting into a new
directory.

Examples:
  redditharvest export
  redditharvest export --subreddit golang --out ./data
  redditharvest export --json`,
	RunE: runExport,
}

var (
	exportOut       string
	exportSubreddit string
	exportJSONFlag  bool
)

func runExport(cmd *cobra.Command, args []string) error {
	db := store.GetDB()

	if exportSubreddit != "" {
		exportSubreddit = normalizeSubreddit(exportSubreddit)
	}

	out := exportOut
	if !cmd.Flags().Changed("out") {
		cfg, err := db.GetConfig()
		if err != nil {
			return err
		}

		if cfg.OutputDir != "" {
			out = cfg.OutputDir
		}
	}

	exporter := export.NewExporter(db, export.ExporterOptions{Logger: slog.Default()})

	if exportJSONFlag {
		subs := []string{exportSubreddit}
		if exportSubreddit == "" {
			stored, err := db.Subreddits()
			if err != nil {
				return err
			}

			subs = stored
		}

		if len(subs) == 0 {
			return fmt.Errorf("nothing stored yet; run 'redditharvest scrape' first")
		}

		for _, sub := range subs {
			path, err := exporter.ExportJSON(sub, out)
			if err != nil {
				return err
			}

			fmt.Printf("Saved: %s\n", path)
		}

		fmt.Printf("\nData saved in: %s\n", out)

		return nil
	}

	var results []export.Result

	if exportSubreddit != "" {
		res, err := exporter.ExportSubreddit(exportSubreddit, out)
		if err != nil {
			return err
		}

		results = append(results, *res)
	} else {
		all, err := exporter.ExportAll(out)
		if err != nil {
			return err
		}

		results = all
	}

	if len(results) == 0 {
		return fmt.Errorf("nothing stored yet; run 'redditharvest scrape' first")
	}

	for _, result := range results {
		fmt.Printf("r/%s: %d posts, %d comments, %d images\n",
			result.Subreddit, result.Posts, result.Comments, result.Images)
	}

	fmt.Printf("\nData saved in: %s\n", out)

	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "./reddit_data", "Output directory")
	exportCmd.Flags().StringVar(&exportSubreddit, "subreddit", "", "Export a single subreddit")
	exportCmd.Flags().BoolVar(&exportJSONFlag, "json", false, "Export JSON dumps instead of CSV")

	rootCmd.AddCommand(exportCmd)
}
