package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/store"
)

// Plan describes one batch harvest.
type Plan struct {
	Subreddits []string
	Parallel   int
}

// BatchOptions configures batch (non-TUI) harvest execution
type BatchOptions struct {
	Plan      *Plan
	Harvester *Harvester
	Store     store.Store
	Logger    *slog.Logger

	// Quiet suppresses the per-subreddit progress lines.
	Quiet bool
}

// BatchResult contains the results of a batch harvest
type BatchResult struct {
	Summaries []model.RunSummary
	Succeeded int
	Failed    int
	Posts     int
	Comments  int
	Images    int
	Duration  time.Duration
}

// ExecuteBatch harvests the planned subreddits with a bounded worker pool.
// A failing subreddit is recorded and the batch moves on.
func ExecuteBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	plan := opts.Plan

	if len(plan.Subreddits) == 0 {
		return nil, fmt.Errorf("no subreddits to harvest")
	}

	parallel := plan.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	if parallel > len(plan.Subreddits) {
		parallel = len(plan.Subreddits)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	var (
		succeeded, failed atomic.Int32
		current           atomic.Int32
	)

	total := len(plan.Subreddits)
	summaries := make([]model.RunSummary, 0, total)

	var summariesMu sync.Mutex

	printProgress := func(sub string, res *Result, err error) {
		if opts.Quiet {
			return
		}

		curr := current.Add(1)
		pct := float64(curr) / float64(total) * 100

		if err != nil {
			detail := err.Error()
			if len(detail) > 60 {
				detail = detail[:57] + "..."
			}

			_, _ = fmt.Fprintf(os.Stdout, "[%3.0f%%] [FAIL ] %-24s - %s\n", pct, sub, detail)

			return
		}

		_, _ = fmt.Fprintf(os.Stdout, "[%3.0f%%] [OK   ] %-24s posts=%d comments=%d images=%d skipped=%d\n",
			pct, sub, res.Posts, res.Comments, res.Images, res.Skipped)
	}

	workQueue := make(chan string, total)

	var wg sync.WaitGroup

	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range workQueue {
				summary := harvestOne(ctx, opts, sub)

				if summary.Err == "" {
					succeeded.Add(1)
					printProgress(sub, resultFromSummary(&summary), nil)
				} else {
					failed.Add(1)
					printProgress(sub, nil, fmt.Errorf("%s", summary.Err))
				}

				summariesMu.Lock()

				summaries = append(summaries, summary)

				summariesMu.Unlock()
			}
		}()
	}

	for _, sub := range plan.Subreddits {
		workQueue <- sub
	}

	close(workQueue)
	wg.Wait()

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Subreddit < summaries[j].Subreddit })

	result := &BatchResult{
		Summaries: summaries,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}

	for _, s := range summaries {
		result.Posts += s.Posts
		result.Comments += s.Comments
		result.Images += s.Images
	}

	logger.Info("batch done",
		"subreddits", total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"posts", result.Posts,
		"duration", result.Duration,
	)

	return result, nil
}

// harvestOne runs a single subreddit harvest and persists its run summary.
func harvestOne(ctx context.Context, opts BatchOptions, sub string) model.RunSummary {
	summary := model.RunSummary{
		Subreddit: sub,
		StartedAt: time.Now(),
	}

	res, err := opts.Harvester.HarvestSubreddit(ctx, sub)
	if err != nil {
		summary.Err = err.Error()
		summary.Duration = time.Since(summary.StartedAt)
	} else {
		summary.Posts = res.Posts
		summary.Comments = res.Comments
		summary.Images = res.Images
		summary.Skipped = res.Skipped
		summary.Duration = res.Duration
	}

	if opts.Store != nil {
		if err := opts.Store.SaveRun(&summary); err != nil {
			opts.Harvester.logger.Warn("failed to save run summary", "subreddit", sub, "error", err)
		}

		if summary.Err == "" {
			if err := opts.Store.TouchTarget(sub, summary.StartedAt); err != nil {
				opts.Harvester.logger.Warn("failed to update target", "subreddit", sub, "error", err)
			}
		}
	}

	return summary
}

func resultFromSummary(s *model.RunSummary) *Result {
	return &Result{
		Subreddit: s.Subreddit,
		Posts:     s.Posts,
		Comments:  s.Comments,
		Images:    s.Images,
		Skipped:   s.Skipped,
		Duration:  s.Duration,
	}
}
