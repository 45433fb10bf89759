package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage stored subreddit targets",
	Long: `Manage the list of subreddits harvested by 'scrape' when no
arguments are given.

Available Commands:
  add           Register one or more subreddits
  remove        Remove a subreddit
  list          Show stored targets
  import        Read subreddit names from a file

Examples:
  redditharvest targets add golang pics
  redditharvest targets import reddit_threads.txt
  redditharvest targets list
  redditharvest targets remove pics`,
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <subreddit>...",
	Short: "Register one or more subreddits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := store.GetDB()

		for _, name := range args {
			name = normalizeSubreddit(name)

			if err := db.SaveTarget(name); err != nil {
				return err
			}

			fmt.Printf("Added: r/%s\n", name)
		}

		return nil
	},
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <subreddit>",
	Short: "Remove a subreddit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := normalizeSubreddit(args[0])

		if err := store.GetDB().RemoveTarget(name); err != nil {
			return err
		}

		fmt.Printf("Removed: r/%s\n", name)

		return nil
	},
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := store.GetDB().ListTargets()
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			fmt.Println("No targets stored. Add some with 'redditharvest targets add <name>'.")

			return nil
		}

		for _, t := range targets {
			line := "r/" + t.Name
			if !t.LastRunAt.IsZero() {
				line += fmt.Sprintf("  (last harvested %s)", t.LastRunAt.Format("2006-01-02 15:04"))
			}

			fmt.Println(line)
		}

		return nil
	},
}

var targetsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Read subreddit names from a file",
	Long: `Import targets from a newline-delimited file, one subreddit per
line. Blank lines and lines starting with '#' are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}

		defer func() { _ = f.Close() }()

		db := store.GetDB()
		added := 0

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			name := strings.TrimSpace(scanner.Text())
			if name == "" || strings.HasPrefix(name, "#") {
				continue
			}

			if err := db.SaveTarget(normalizeSubreddit(name)); err != nil {
				return err
			}

			added++
		}

		if err := scanner.Err(); err != nil {
			return err
		}

		fmt.Printf("Imported %d target(s) from %s\n", added, args[0])

		return nil
	},
}

// normalizeSubreddit accepts "r/name", "/r/name" or plain "name".
func normalizeSubreddit(name string) string {
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimPrefix(name, "r/")

	return strings.TrimSpace(name)
}

func init() {
	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsRemoveCmd)
	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsImportCmd)

	rootCmd.AddCommand(targetsCmd)
}
