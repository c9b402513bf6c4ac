package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Global flag names
const (
	KeyGiteaURL                  = "gitea-url"
	KeyGiteaToken                = "gitea-token"
	KeyGitHubToken               = "github-token"
	KeyGitHubURL                 = "github-url"
	KeyGitHubAppID               = "github-app-id"
	KeyGitHubAppInstallationID   = "github-app-installation-id"
	KeyGitHubAppPrivateKey       = "github-app-private-key"
	KeyGitHubAppPrivateKeyAsFile = "github-app-private-key-as-file"
	KeyLogLevel                  = "log-level"
	KeyLogFormat                 = "log-format"
	KeyRetries                   = "retries"
	KeyDryRun                    = "dry-run"
)

// AddGlobalFlags registers the flags every mode shares
func AddGlobalFlags(flags *pflag.FlagSet) {
	flags.String(KeyGiteaURL, "", "Gitea base URL (or set GITEA_URL env)")
	flags.String(KeyGiteaToken, "", "Gitea API token (or set GITEA_TOKEN env)")
	flags.String(KeyGitHubToken, "", "GitHub API token (or set GITHUB_TOKEN env)")
	flags.String(KeyGitHubURL, "", "GitHub API base URL for GitHub Enterprise (or set GITHUB_URL env)")
	flags.Int(KeyGitHubAppID, 0, "GitHub APP ID (or set GITHUB_APP_ID env)")
	flags.Int(KeyGitHubAppInstallationID, 0, "GitHub APP Installation ID (or set GITHUB_APP_INSTALLATION_ID env)")
	flags.String(KeyGitHubAppPrivateKey, "", "GitHub APP private key (or set GITHUB_APP_PRIVATE_KEY env)")
	flags.Bool(KeyGitHubAppPrivateKeyAsFile, false, "GitHub APP private key as file")
	flags.String(KeyLogLevel, "info", "Log level (debug, info, warn, error, fatal)")
	flags.String(KeyLogFormat, "console", "Log format (console, json)")
	flags.Int(KeyRetries, 0, "Retries for transient API errors (5xx, 429, network)")
	flags.Bool(KeyDryRun, false, "Build and log migration requests without submitting them")
}

// Load resolves the global configuration. Flags win over environment
// variables, which win over the optional YAML file at configFile.
func Load(flags *pflag.FlagSet, configFile string) (GlobalConfig, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return GlobalConfig{}, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	// GITEA_URL, GITHUB_APP_ID, ...
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg := GlobalConfig{
		GiteaURL:                  v.GetString(KeyGiteaURL),
		GiteaToken:                v.GetString(KeyGiteaToken),
		GitHubToken:               v.GetString(KeyGitHubToken),
		GitHubURL:                 v.GetString(KeyGitHubURL),
		GitHubAppID:               v.GetInt(KeyGitHubAppID),
		GitHubAppInstallationID:   v.GetInt(KeyGitHubAppInstallationID),
		GitHubAppPrivateKey:       v.GetString(KeyGitHubAppPrivateKey),
		GitHubAppPrivateKeyAsFile: v.GetBool(KeyGitHubAppPrivateKeyAsFile),
		LogLevel:                  v.GetString(KeyLogLevel),
		LogFormat:                 v.GetString(KeyLogFormat),
		Retries:                   v.GetInt(KeyRetries),
		DryRun:                    v.GetBool(KeyDryRun),
	}

	if cfg.GitHubAppPrivateKeyAsFile && cfg.GitHubAppPrivateKey != "" {
		privateKey, err := os.ReadFile(cfg.GitHubAppPrivateKey)
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("could not read private key %s: %w", cfg.GitHubAppPrivateKey, err)
		}
		cfg.GitHubAppPrivateKey = string(privateKey)
	}

	return cfg, nil
}
