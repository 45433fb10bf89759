package reddit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCredentials_ExplicitWins(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("REDDIT_CLIENT_SECRET", "env-secret")
	t.Setenv("REDDIT_USER_AGENT", "env-agent")

	creds, err := ResolveCredentials(Credentials{
		ClientID:     "flag-id",
		ClientSecret: "flag-secret",
		UserAgent:    "flag-agent",
	}, Credentials{}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "flag-id", creds.ClientID)
	require.Equal(t, "flag-secret", creds.ClientSecret)
	require.Equal(t, "flag-agent", creds.UserAgent)
}

func TestResolveCredentials_EnvironmentBeatsStored(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("REDDIT_CLIENT_SECRET", "env-secret")
	t.Setenv("REDDIT_USER_AGENT", "env-agent")

	stored := Credentials{
		ClientID:     "stored-id",
		ClientSecret: "stored-secret",
		UserAgent:    "stored-agent",
	}

	creds, err := ResolveCredentials(Credentials{}, stored, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "env-id", creds.ClientID)
	require.Equal(t, "env-secret", creds.ClientSecret)
	require.Equal(t, "env-agent", creds.UserAgent)
}

func TestResolveCredentials_StoredBeatsINI(t *testing.T) {
	for _, name := range []string{
		"REDDIT_CLIENT_ID", "CLIENT_ID",
		"REDDIT_CLIENT_SECRET", "CLIENT_SECRET",
		"REDDIT_USER_AGENT", "USER_AGENT",
	} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	iniBody := `[DEFAULT]
client_id = ini-id
client_secret = ini-secret
user_agent = ini-agent
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "praw.ini"), []byte(iniBody), 0o600))

	stored := Credentials{ClientID: "stored-id"}

	creds, err := ResolveCredentials(Credentials{}, stored, dir)
	require.NoError(t, err)
	require.Equal(t, "stored-id", creds.ClientID)
	require.Equal(t, "ini-secret", creds.ClientSecret)
	require.Equal(t, "ini-agent", creds.UserAgent)
}

func TestResolveCredentials_Environment(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("CLIENT_SECRET", "bare-secret")
	t.Setenv("REDDIT_USER_AGENT", "env-agent")

	creds, err := ResolveCredentials(Credentials{}, Credentials{}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "env-id", creds.ClientID)
	require.Equal(t, "bare-secret", creds.ClientSecret)
	require.Equal(t, "env-agent", creds.UserAgent)
}

func TestResolveCredentials_PrefixedBeatsBare(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "prefixed")
	t.Setenv("CLIENT_ID", "bare")
	t.Setenv("REDDIT_CLIENT_SECRET", "s")
	t.Setenv("REDDIT_USER_AGENT", "a")

	creds, err := ResolveCredentials(Credentials{}, Credentials{}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "prefixed", creds.ClientID)
}

func TestResolveCredentials_INIFile(t *testing.T) {
	for _, name := range []string{
		"REDDIT_CLIENT_ID", "CLIENT_ID",
		"REDDIT_CLIENT_SECRET", "CLIENT_SECRET",
		"REDDIT_USER_AGENT", "USER_AGENT",
	} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	iniBody := `[DEFAULT]
client_id = ini-id
client_secret = ini-secret
user_agent = ini-agent
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "praw.ini"), []byte(iniBody), 0o600))

	creds, err := ResolveCredentials(Credentials{}, Credentials{}, dir)
	require.NoError(t, err)
	require.Equal(t, "ini-id", creds.ClientID)
	require.Equal(t, "ini-secret", creds.ClientSecret)
	require.Equal(t, "ini-agent", creds.UserAgent)
}

func TestResolveCredentials_NamedSection(t *testing.T) {
	for _, name := range []string{
		"REDDIT_CLIENT_ID", "CLIENT_ID",
		"REDDIT_CLIENT_SECRET", "CLIENT_SECRET",
		"REDDIT_USER_AGENT", "USER_AGENT",
	} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	iniBody := `[harvester]
client_id = site-id
client_secret = site-secret
user_agent = site-agent
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "praw.ini"), []byte(iniBody), 0o600))

	creds, err := ResolveCredentials(Credentials{}, Credentials{}, dir)
	require.NoError(t, err)
	require.Equal(t, "site-id", creds.ClientID)
}

func TestResolveCredentials_Missing(t *testing.T) {
	for _, name := range []string{
		"REDDIT_CLIENT_ID", "CLIENT_ID",
		"REDDIT_CLIENT_SECRET", "CLIENT_SECRET",
		"REDDIT_USER_AGENT", "USER_AGENT",
	} {
		t.Setenv(name, "")
	}

	_, err := ResolveCredentials(Credentials{}, Credentials{}, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing credentials")
}
