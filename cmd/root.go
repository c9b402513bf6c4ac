package cmd

import (
	"github.com/krrrr38/github-2-gitea/pkg/config"
	"github.com/krrrr38/github-2-gitea/pkg/logger"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var (
		cfg        config.GlobalConfig
		configFile string
	)

	rootCmd := &cobra.Command{
		Use:   "github-2-gitea",
		Short: "Mirror GitHub repositories into Gitea",
		Long: `Mirror GitHub repositories into Gitea.
This tool creates Gitea pull mirrors for:
- every repository of a GitHub organization (org)
- every repository a GitHub user starred (star)
- every repository owned by the GitHub token's user (user)
- a single repository (repo)
Existing mirrors are left untouched, so it is safe to run on a schedule.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			cfg = loaded

			if err := logger.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			return logger.SetFormat(cfg.LogFormat)
		},
	}

	config.AddGlobalFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file with the global flags as keys")

	for _, mode := range config.Modes {
		rootCmd.AddCommand(NewModeCommand(mode, &cfg))
	}

	return rootCmd
}
