package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/inovacc/redditharvest/internal/cli"
	"github.com/inovacc/redditharvest/internal/export"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/params"
	"github.com/inovacc/redditharvest/internal/reddit"
	"github.com/inovacc/redditharvest/internal/scrape"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [subreddit...]",
	Short: "Harvest posts, comments and images from subreddits",
	Long: `Harvest hot posts from the named subreddits, or from every stored
target when none are given.

For each post the harvester collects:
  - The submission itself (score, author, flair, timestamps)
  - Up to --max-comments top-level comment threads, replies included
  - Every image reference: direct links, galleries, and URLs embedded
    in post text or comment bodies

Posts already harvested are skipped unless --refresh is set. Results are
exported as per-subreddit CSV files unless --no-export is given.

Authentication:
  Uses a Reddit application client id/secret from (in priority order):
  1. --client-id / --client-secret / --user-agent flags
  2. REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USER_AGENT
     (CLIENT_ID, CLIENT_SECRET, USER_AGENT also accepted)
  3. Stored redditharvest configuration
  4. A praw.ini file in the config directory

Examples:
  redditharvest scrape golang
  redditharvest scrape golang pics --limit 50 --pages 2
  redditharvest scrape --parallel 8 --no-tui
  redditharvest scrape golang --refresh --out ./data`,
	RunE: runScrape,
}

var (
	scrapeLimit       int
	scrapePages       int
	scrapeMaxComments int
	scrapeParallel    int
	scrapeOut         string
	scrapeRefresh     bool
	scrapeNoExport    bool
	scrapeNoTUI       bool
	scrapeJSON        bool
	scrapeClientID    string
	scrapeSecret      string
	scrapeUserAgent   string
)

func runScrape(cmd *cobra.Command, args []string) error {
	db := store.GetDB()

	cfg, err := db.GetConfig()
	if err != nil {
		return err
	}

	applyScrapeDefaults(cmd, cfg)

	subreddits := args
	if len(subreddits) == 0 {
		targets, err := db.ListTargets()
		if err != nil {
			return err
		}

		for _, t := range targets {
			subreddits = append(subreddits, t.Name)
		}
	}

	if len(subreddits) == 0 {
		return fmt.Errorf("no subreddits given and no targets stored\nAdd some with 'redditharvest targets add <name>' or pass them as arguments")
	}

	// Remember explicit arguments as targets for future runs.
	for _, sub := range args {
		if err := db.SaveTarget(sub); err != nil {
			return err
		}
	}

	client, err := newRedditClient(cfg, reddit.Credentials{
		ClientID:     scrapeClientID,
		ClientSecret: scrapeSecret,
		UserAgent:    scrapeUserAgent,
	})
	if err != nil {
		return err
	}

	harvester := scrape.NewHarvester(client, db, scrape.Options{
		Limit:       scrapeLimit,
		Pages:       scrapePages,
		MaxComments: scrapeMaxComments,
		Refresh:     scrapeRefresh,
		Logger:      slog.Default(),
	})

	plan := &scrape.Plan{
		Subreddits: subreddits,
		Parallel:   scrapeParallel,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summaries, err := runHarvest(ctx, plan, harvester, db)
	if err != nil {
		return err
	}

	printHarvestSummary(summaries)

	if scrapeNoExport {
		return nil
	}

	return exportResults(db, subreddits)
}

// runHarvest picks the TUI when stdout is a terminal, the plain batch
// printer otherwise.
func runHarvest(ctx context.Context, plan *scrape.Plan, harvester *scrape.Harvester, db store.Store) ([]model.RunSummary, error) {
	if scrapeNoTUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		result, err := scrape.ExecuteBatch(ctx, scrape.BatchOptions{
			Plan:      plan,
			Harvester: harvester,
			Store:     db,
			Logger:    slog.Default(),
		})
		if err != nil {
			return nil, err
		}

		return result.Summaries, nil
	}

	m := cli.NewHarvestModel(ctx, plan, harvester, db)

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}

	harvestModel := finalModel.(*cli.HarvestModel)
	if err := harvestModel.Err(); err != nil {
		return nil, err
	}

	return harvestModel.Summaries(), nil
}

func printHarvestSummary(summaries []model.RunSummary) {
	for _, s := range summaries {
		if s.Err != "" {
			fmt.Printf("  ERROR processing %s: %s\n", s.Subreddit, s.Err)

			continue
		}

		fmt.Printf("  Summary for %s:\n", s.Subreddit)
		fmt.Printf("    - Posts: %d\n", s.Posts)
		fmt.Printf("    - Comments: %d\n", s.Comments)
		fmt.Printf("    - Images found: %d\n", s.Images)

		if s.Skipped > 0 {
			fmt.Printf("    - Skipped (already harvested): %d\n", s.Skipped)
		}
	}
}

func exportResults(db store.Store, subreddits []string) error {
	exporter := export.NewExporter(db, export.ExporterOptions{Logger: slog.Default()})

	for _, sub := range subreddits {
		if scrapeJSON {
			path, err := exporter.ExportJSON(sub, scrapeOut)
			if err != nil {
				return err
			}

			fmt.Printf("  Saved JSON dump to: %s\n", path)

			continue
		}

		result, err := exporter.ExportSubreddit(sub, scrapeOut)
		if err != nil {
			return err
		}

		fmt.Printf("  Saved %d posts to: %s\n", result.Posts, result.PostsFile)
		fmt.Printf("  Saved %d comments to: %s\n", result.Comments, result.CommentsFile)

		if result.ImagesFile != "" {
			fmt.Printf("  Saved %d image URLs to: %s\n", result.Images, result.ImagesFile)
		}
	}

	fmt.Printf("\nData saved in: %s\n", scrapeOut)

	return nil
}

// applyScrapeDefaults fills unset flags from stored configuration.
func applyScrapeDefaults(cmd *cobra.Command, cfg *model.Config) {
	if !cmd.Flags().Changed("limit") && cfg.PostLimit > 0 {
		scrapeLimit = cfg.PostLimit
	}

	if !cmd.Flags().Changed("pages") && cfg.Pages > 0 {
		scrapePages = cfg.Pages
	}

	if !cmd.Flags().Changed("max-comments") && cfg.MaxComments > 0 {
		scrapeMaxComments = cfg.MaxComments
	}

	if !cmd.Flags().Changed("parallel") && cfg.Parallel > 0 {
		scrapeParallel = cfg.Parallel
	}

	if !cmd.Flags().Changed("out") && cfg.OutputDir != "" {
		scrapeOut = cfg.OutputDir
	}
}

// newRedditClient resolves credentials (flags, env, stored config,
// praw.ini) and builds the API client.
func newRedditClient(cfg *model.Config, seed reddit.Credentials) (*reddit.Client, error) {
	stored := reddit.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAgent:    cfg.UserAgent,
	}

	creds, err := reddit.ResolveCredentials(seed, stored, params.AppdataDir)
	if err != nil {
		return nil, err
	}

	return reddit.NewClient(creds, reddit.ClientOptions{
		Logger:            slog.Default(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 100, "Posts per listing page (max 100)")
	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 5, "Pages to fetch per subreddit")
	scrapeCmd.Flags().IntVar(&scrapeMaxComments, "max-comments", 5, "Top-level comment threads per post")
	scrapeCmd.Flags().IntVar(&scrapeParallel, "parallel", 4, "Subreddits harvested concurrently")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "./reddit_data", "Output directory for exports")
	scrapeCmd.Flags().BoolVar(&scrapeRefresh, "refresh", false, "Rescrape posts already in the store")
	scrapeCmd.Flags().BoolVar(&scrapeNoExport, "no-export", false, "Skip CSV export after harvesting")
	scrapeCmd.Flags().BoolVar(&scrapeNoTUI, "no-tui", false, "Disable the interactive progress display")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Export JSON dumps instead of CSV")
	scrapeCmd.Flags().StringVar(&scrapeClientID, "client-id", "", "Reddit application client id")
	scrapeCmd.Flags().StringVar(&scrapeSecret, "client-secret", "", "Reddit application client secret")
	scrapeCmd.Flags().StringVar(&scrapeUserAgent, "user-agent", "", "User agent sent to the Reddit API")

	rootCmd.AddCommand(scrapeCmd)
}
