package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/inovacc/redditharvest/internal/reddit"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Verify Reddit API credentials",
	Long: `Verify the configured credentials by requesting an application
token and fetching a public subreddit's metadata.

Examples:
  redditharvest auth
  redditharvest auth --client-id abc --client-secret xyz --user-agent "myapp/1.0"`,
	RunE: runAuth,
}

var (
	authClientID  string
	authSecret    string
	authUserAgent string
)

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := store.GetDB().GetConfig()
	if err != nil {
		return err
	}

	client, err := newRedditClient(cfg, reddit.Credentials{
		ClientID:     authClientID,
		ClientSecret: authSecret,
		UserAgent:    authUserAgent,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	info, err := client.AboutSubreddit(ctx, "announcements")
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	fmt.Println("Credentials OK")
	fmt.Printf("  Reached r/%s (%d subscribers)\n", info.DisplayName, info.Subscribers)

	return nil
}

func init() {
	authCmd.Flags().StringVar(&authClientID, "client-id", "", "Reddit application client id")
	authCmd.Flags().StringVar(&authSecret, "client-secret", "", "Reddit application client secret")
	authCmd.Flags().StringVar(&authUserAgent, "user-agent", "", "User agent sent to the Reddit API")

	rootCmd.AddCommand(authCmd)
}
