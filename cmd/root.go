package cmd

import (
	"log/slog"
	"os"

	"github.com/inovacc/redditharvest/internal/application"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "A Reddit scraping tool",
	Long: `Redditharvest is a command-line tool for harvesting Reddit content.
It pulls hot posts, comment threads, and image references from a set of
subreddits and exports per-subreddit CSV files ready for analysis.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))

		cmd.Flags().Visit(func(f *pflag.Flag) {
			value := f.Value.String()
			if f.Name == "client-secret" {
				value = "<redacted>"
			}

			slog.Debug("flag set", "name", f.Name, "value", value)
		})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
