package reddit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Credentials identifies a Reddit application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// Validate reports whether all credential fields are present.
func (c Credentials) Validate() error {
	var missing []string

	if c.ClientID == "" {
		missing = append(missing, "client id")
	}

	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}

	if c.UserAgent == "" {
		missing = append(missing, "user agent")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v (run 'redditharvest configure' or set REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USER_AGENT)", missing)
	}

	return nil
}

// envVar pairs: the REDDIT_ prefixed names take priority; the bare names
// match the env file the original tooling used.
var (
	envClientID     = []string{"REDDIT_CLIENT_ID", "CLIENT_ID"}
	envClientSecret = []string{"REDDIT_CLIENT_SECRET", "CLIENT_SECRET"}
	envUserAgent    = []string{"REDDIT_USER_AGENT", "USER_AGENT"}
)

// ResolveCredentials fills empty fields of seed in priority order: the
// environment, then stored (the persisted configuration), then a praw.ini
// style file in dir. Explicit seed values always win; the result is
// validated.
func ResolveCredentials(seed, stored Credentials, dir string) (Credentials, error) {
	creds := seed

	if creds.ClientID == "" {
		creds.ClientID = firstEnv(envClientID)
	}

	if creds.ClientSecret == "" {
		creds.ClientSecret = firstEnv(envClientSecret)
	}

	if creds.UserAgent == "" {
		creds.UserAgent = firstEnv(envUserAgent)
	}

	if creds.ClientID == "" {
		creds.ClientID = stored.ClientID
	}

	if creds.ClientSecret == "" {
		creds.ClientSecret = stored.ClientSecret
	}

	if creds.UserAgent == "" {
		creds.UserAgent = stored.UserAgent
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.UserAgent == "" {
		fileCreds, err := loadINICredentials(filepath.Join(dir, "praw.ini"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, err
		}

		if creds.ClientID == "" {
			creds.ClientID = fileCreds.ClientID
		}

		if creds.ClientSecret == "" {
			creds.ClientSecret = fileCreds.ClientSecret
		}

		if creds.UserAgent == "" {
			creds.UserAgent = fileCreds.UserAgent
		}
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}

// loadINICredentials reads a praw.ini compatible file. The DEFAULT section
// is used; any other single site section works too since ini.v1 folds
// DEFAULT keys into every section.
func loadINICredentials(path string) (Credentials, error) {
	if _, err := os.Stat(path); err != nil {
		return Credentials{}, err
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	section := cfg.Section(ini.DefaultSection)

	// Prefer a named section when the default one is empty.
	if !section.HasKey("client_id") {
		for _, s := range cfg.Sections() {
			if s.HasKey("client_id") {
				section = s

				break
			}
		}
	}

	return Credentials{
		ClientID:     section.Key("client_id").String(),
		ClientSecret: section.Key("client_secret").String(),
		UserAgent:    section.Key("user_agent").String(),
	}, nil
}

func firstEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}

	return ""
}
