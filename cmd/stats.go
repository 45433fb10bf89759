package cmd

import (
	"fmt"
	"time"

	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [subreddit]",
	Short: "Show stored record counts per subreddit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := store.GetDB()

		subs := make([]string, 0, len(args))
		for _, arg := range args {
			subs = append(subs, normalizeSubreddit(arg))
		}

		if len(subs) == 0 {
			stored, err := db.Subreddits()
			if err != nil {
				return err
			}

			subs = stored
		}

		if len(subs) == 0 {
			fmt.Println("Nothing stored yet.")

			return nil
		}

		fmt.Printf("%-24s %8s %10s %8s\n", "SUBREDDIT", "POSTS", "COMMENTS", "IMAGES")

		var totalPosts, totalComments, totalImages int

		for _, sub := range subs {
			counts, err := db.Counts(sub)
			if err != nil {
				return err
			}

			fmt.Printf("%-24s %8d %10d %8d\n", "r/"+sub, counts.Posts, counts.Comments, counts.Images)

			totalPosts += counts.Posts
			totalComments += counts.Comments
			totalImages += counts.Images
		}

		if len(subs) > 1 {
			fmt.Printf("%-24s %8d %10d %8d\n", "total", totalPosts, totalComments, totalImages)

			return nil
		}

		runs, err := db.GetRuns(subs[0])
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			return nil
		}

		fmt.Printf("\nRuns for r/%s:\n", subs[0])

		for _, r := range runs {
			if r.Err != "" {
				fmt.Printf("  %s  failed: %s\n", r.StartedAt.Format("2006-01-02 15:04"), r.Err)

				continue
			}

			fmt.Printf("  %s  %d posts, %d comments, %d images (%s)\n",
				r.StartedAt.Format("2006-01-02 15:04"), r.Posts, r.Comments, r.Images,
				r.Duration.Round(time.Millisecond))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
