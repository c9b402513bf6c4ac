package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/krrrr38/github-2-gitea/pkg/config"
	"github.com/krrrr38/github-2-gitea/pkg/gitea"
	"github.com/krrrr38/github-2-gitea/pkg/github"
	"github.com/krrrr38/github-2-gitea/pkg/logger"
	"github.com/krrrr38/github-2-gitea/pkg/migration"
	"github.com/spf13/cobra"
)

var modeDescriptions = map[config.Mode]string{
	config.ModeOrg:  "Mirror every repository of a GitHub organization into a Gitea organization",
	config.ModeStar: "Mirror the repositories a GitHub user starred into a Gitea organization",
	config.ModeUser: "Mirror the repositories owned by the GitHub token's user into the Gitea user",
	config.ModeRepo: "Mirror a single GitHub repository into the Gitea user",
}

var flagUsages = map[string]string{
	config.FlagOrg:        "Organization name (GitHub source in org mode, Gitea destination)",
	config.FlagUsername:   "GitHub username, also the Gitea owner and clone username for private repositories",
	config.FlagVisibility: "Visibility of the created Gitea organization (public, private, limited)",
	config.FlagRepo:       "Repository URL or owner/name, e.g. https://github.com/acme/widgets.git",
}

var flagShorthands = map[string]string{
	config.FlagOrg:        "o",
	config.FlagUsername:   "u",
	config.FlagVisibility: "v",
	config.FlagRepo:       "r",
}

// NewModeCommand builds the subcommand of one run mode
func NewModeCommand(mode config.Mode, cfg *config.GlobalConfig) *cobra.Command {
	run := config.RunConfig{Mode: mode}
	targets := map[string]*string{
		config.FlagOrg:        &run.Org,
		config.FlagUsername:   &run.Username,
		config.FlagVisibility: &run.Visibility,
		config.FlagRepo:       &run.Repo,
	}

	cmd := &cobra.Command{
		Use:   string(mode),
		Short: modeDescriptions[mode],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// nothing may touch the network before both checks pass
			if err := run.Validate(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runMirror(ctx, *cfg, run)
		},
	}

	for _, name := range config.RequiredParameters(mode) {
		cmd.Flags().StringVarP(targets[name], name, flagShorthands[name], "", flagUsages[name])
	}

	return cmd
}

func runMirror(ctx context.Context, cfg config.GlobalConfig, run config.RunConfig) error {
	githubClient, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	giteaClient := gitea.New(cfg.GiteaURL, cfg.GiteaToken, gitea.WithRetries(cfg.Retries))

	token, err := githubClient.Token(ctx)
	switch {
	case errors.Is(err, github.ErrEphemeralToken):
		logger.Warn("No long lived GitHub token, private repositories will fail; pass --github-token to mirror them", "error", err)
	case err != nil:
		return err
	}

	runner := migration.NewRunner(githubClient, giteaClient, migration.MigrationOptions{
		Source: migration.SourceCredentials{Username: run.Username, Token: token},
		DryRun: cfg.DryRun,
	})
	if err := runner.Run(ctx, run); err != nil {
		return err
	}

	logger.Info("Mirroring completed successfully!")
	return nil
}

func newGitHubClient(cfg config.GlobalConfig) (*github.Client, error) {
	opts := []github.Option{github.WithBaseURL(cfg.GitHubURL), github.WithRetries(cfg.Retries)}

	if cfg.UsesGitHubApp() {
		client, err := github.NewClientByApp(cfg.GitHubAppID, cfg.GitHubAppInstallationID, cfg.GitHubAppPrivateKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return client, nil
	}

	client, err := github.NewClientByPAT(cfg.GitHubToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return client, nil
}
