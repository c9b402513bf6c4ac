package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMode        = errors.New("invalid mode")
	ErrMissingParameter   = errors.New("missing required parameter")
	ErrInvalidVisibility  = errors.New("invalid visibility")
	ErrMissingCredentials = errors.New("missing credentials")
)

type Mode string

const (
	ModeOrg  Mode = "org"
	ModeStar Mode = "star"
	ModeRepo Mode = "repo"
	ModeUser Mode = "user"
)

// Modes lists every run mode in the order they are documented
var Modes = []Mode{ModeOrg, ModeStar, ModeRepo, ModeUser}

// Flag names, shared with the cmd package so errors name the flag to fix
const (
	FlagOrg        = "org"
	FlagUsername   = "username"
	FlagVisibility = "visibility"
	FlagRepo       = "repo"
)

// requiredParameters is the fixed parameter set each mode needs
var requiredParameters = map[Mode][]string{
	ModeOrg:  {FlagOrg, FlagUsername, FlagVisibility},
	ModeStar: {FlagOrg, FlagUsername},
	ModeRepo: {FlagRepo, FlagUsername},
	ModeUser: {FlagUsername},
}

// Gitea organization visibilities
var visibilities = []string{"public", "private", "limited"}

type GlobalConfig struct {
	GiteaURL                  string
	GiteaToken                string
	GitHubToken               string
	GitHubURL                 string
	GitHubAppID               int
	GitHubAppInstallationID   int
	GitHubAppPrivateKey       string
	GitHubAppPrivateKeyAsFile bool
	LogLevel                  string
	LogFormat                 string
	Retries                   int
	DryRun                    bool
}

// UsesGitHubApp reports whether the source host is accessed as a GitHub App
// installation instead of with a personal access token
func (c GlobalConfig) UsesGitHubApp() bool {
	return c.GitHubToken == "" && c.GitHubAppID > 0 && c.GitHubAppInstallationID > 0 && c.GitHubAppPrivateKey != ""
}

// Validate checks that both hosts can be reached with credentials
func (c GlobalConfig) Validate() error {
	if c.GiteaURL == "" {
		return fmt.Errorf("%w: --gitea-url (or GITEA_URL)", ErrMissingCredentials)
	}
	if c.GiteaToken == "" {
		return fmt.Errorf("%w: --gitea-token (or GITEA_TOKEN)", ErrMissingCredentials)
	}
	if c.GitHubToken == "" && !c.UsesGitHubApp() {
		return fmt.Errorf("%w: --github-token (or GITHUB_TOKEN) or GitHub App settings", ErrMissingCredentials)
	}
	if c.Retries < 0 {
		return fmt.Errorf("--retries must not be negative, got %d", c.Retries)
	}
	return nil
}

// RunConfig is the selected mode and the parameters it was given
type RunConfig struct {
	Mode       Mode
	Org        string
	Username   string
	Visibility string
	Repo       string
}

// RequiredParameters returns the flag names the mode cannot run without
func RequiredParameters(m Mode) []string {
	return append([]string(nil), requiredParameters[m]...)
}

// Validate refuses a run whose mode is missing any required parameter
func (r RunConfig) Validate() error {
	required, ok := requiredParameters[r.Mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.Mode)
	}

	var missing []string
	for _, name := range required {
		if strings.TrimSpace(r.value(name)) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s mode: %s", ErrMissingParameter, r.Mode, strings.Join(missing, ", "))
	}

	if r.Visibility != "" && !isVisibility(r.Visibility) {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidVisibility, r.Visibility, strings.Join(visibilities, ", "))
	}
	return nil
}

func (r RunConfig) value(name string) string {
	switch name {
	case FlagOrg:
		return r.Org
	case FlagUsername:
		return r.Username
	case FlagVisibility:
		return r.Visibility
	case FlagRepo:
		return r.Repo
	}
	return ""
}

func isVisibility(v string) bool {
	for _, candidate := range visibilities {
		if v == candidate {
			return true
		}
	}
	return false
}
