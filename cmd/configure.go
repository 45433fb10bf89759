package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure credentials and harvest defaults",
	Long: `Store the Reddit application credentials and default harvest
settings. The client secret is read without echo.

Create an application of type "script" at
https://www.reddit.com/prefs/apps to obtain a client id and secret.

Examples:
  redditharvest configure
  redditharvest configure --show
  redditharvest configure --reset`,
	RunE: runConfigure,
}

var (
	configureShow  bool
	configureReset bool
)

func runConfigure(cmd *cobra.Command, args []string) error {
	db := store.GetDB()

	if configureReset {
		def := model.DefaultConfig()

		if err := db.SaveConfig(&def); err != nil {
			return err
		}

		fmt.Println("Configuration reset to defaults.")

		return nil
	}

	cfg, err := db.GetConfig()
	if err != nil {
		return err
	}

	if configureShow {
		showConfig(cfg)

		return nil
	}

	reader := bufio.NewReader(os.Stdin)

	if v := promptString(reader, "Client id", cfg.ClientID); v != "" {
		cfg.ClientID = v
	}

	secret, err := promptSecret("Client secret")
	if err != nil {
		return err
	}

	if secret != "" {
		cfg.ClientSecret = secret
	}

	if v := promptString(reader, "User agent", cfg.UserAgent); v != "" {
		cfg.UserAgent = v
	}

	if v := promptString(reader, "Output directory", cfg.OutputDir); v != "" {
		cfg.OutputDir = v
	}

	if err := db.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Println("Configuration saved.")

	return nil
}

func showConfig(cfg *model.Config) {
	masked := ""
	if cfg.ClientSecret != "" {
		masked = strings.Repeat("*", 8)
	}

	fmt.Println("Current configuration:")
	fmt.Printf("  Client id:      %s\n", cfg.ClientID)
	fmt.Printf("  Client secret:  %s\n", masked)
	fmt.Printf("  User agent:     %s\n", cfg.UserAgent)
	fmt.Printf("  Output dir:     %s\n", cfg.OutputDir)
	fmt.Printf("  Post limit:     %d\n", cfg.PostLimit)
	fmt.Printf("  Pages:          %d\n", cfg.Pages)
	fmt.Printf("  Max comments:   %d\n", cfg.MaxComments)
	fmt.Printf("  Parallel:       %d\n", cfg.Parallel)
	fmt.Printf("  Rate (req/s):   %.1f\n", cfg.RequestsPerSecond)
}

func promptString(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}

	return strings.TrimSpace(line)
}

// promptSecret reads a value with terminal echo disabled. An empty entry
// keeps the stored value.
func promptSecret(label string) (string, error) {
	fmt.Printf("%s (hidden, empty keeps current): ", label)

	data, err := term.ReadPassword(int(syscall.Stdin))

	fmt.Println()

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func init() {
	configureCmd.Flags().BoolVarP(&configureShow, "show", "s", false, "Show current configuration")
	configureCmd.Flags().BoolVarP(&configureReset, "reset", "r", false, "Reset configuration to defaults")

	rootCmd.AddCommand(configureCmd)
}
