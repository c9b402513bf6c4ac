package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/krrrr38/github-2-gitea/pkg/config"
	"github.com/krrrr38/github-2-gitea/pkg/gitea"
	"github.com/krrrr38/github-2-gitea/pkg/github"
	"github.com/krrrr38/github-2-gitea/pkg/logger"
)

// ErrIncomplete is returned when at least one migration of a batch failed
var ErrIncomplete = errors.New("mirroring incomplete")

// ErrNoCloneCredentials marks a private repository that Gitea could not clone
// because no long lived source token is available
var ErrNoCloneCredentials = errors.New("private repository needs a GitHub token Gitea can keep using")

// Source lists GitHub repositories
type Source interface {
	ListOrgRepos(ctx context.Context, org string) ([]github.SourceRepository, error)
	ListStarredRepos(ctx context.Context, user string) ([]github.SourceRepository, error)
	ListOwnedRepos(ctx context.Context) ([]github.SourceRepository, error)
	GetRepository(ctx context.Context, owner, name string) (github.SourceRepository, error)
	ViewerLogin(ctx context.Context) (string, error)
}

// Destination creates mirrors on Gitea
type Destination interface {
	CreateOrg(ctx context.Context, org, visibility string) error
	GetOrgID(ctx context.Context, org string) (int64, error)
	GetUserID(ctx context.Context, user string) (int64, error)
	Migrate(ctx context.Context, opts gitea.MigrateRepoOptions) error
}

// Stats counts the outcome of one run
type Stats struct {
	Total       int
	Migrated    int
	Skipped     int
	Failed      int
	FailedRepos []string
}

type Runner struct {
	src   Source
	dst   Destination
	opts  MigrationOptions
	stats Stats
}

func NewRunner(src Source, dst Destination, opts MigrationOptions) *Runner {
	return &Runner{src: src, dst: dst, opts: opts}
}

// Stats returns the counters of the last Run
func (r *Runner) Stats() Stats {
	return r.stats
}

// Run executes one mode end to end. Listing and owner resolution failures
// abort the run; failed migrations are counted and reported as ErrIncomplete
// once the whole batch has been attempted.
func (r *Runner) Run(ctx context.Context, run config.RunConfig) error {
	if err := run.Validate(); err != nil {
		return err
	}
	r.stats = Stats{}

	logger.Info("Mirroring started", "mode", run.Mode)

	var err error
	switch run.Mode {
	case config.ModeOrg:
		err = r.mirrorOrg(ctx, run)
	case config.ModeStar:
		err = r.mirrorStars(ctx, run)
	case config.ModeUser:
		err = r.mirrorUser(ctx, run)
	case config.ModeRepo:
		err = r.mirrorRepo(ctx, run)
	}
	if err != nil {
		return err
	}

	r.logSummary()
	if r.stats.Failed > 0 {
		return fmt.Errorf("%w: %d of %d migrations failed (%s)", ErrIncomplete, r.stats.Failed, r.stats.Total, strings.Join(r.stats.FailedRepos, ", "))
	}
	return nil
}

func (r *Runner) mirrorOrg(ctx context.Context, run config.RunConfig) error {
	if r.opts.DryRun {
		logger.Info("Dry run, not creating organization", "org", run.Org, "visibility", run.Visibility)
	} else if err := r.dst.CreateOrg(ctx, run.Org, run.Visibility); err != nil {
		if !errors.Is(err, gitea.ErrAlreadyExists) {
			// resolving the id below decides whether the organization is usable
			logger.Error("Failed to create Gitea organization", "org", run.Org, "error", err)
		} else {
			logger.Info("Gitea organization already exists, reusing it", "org", run.Org)
		}
	}

	uid, err := r.dst.GetOrgID(ctx, run.Org)
	if err != nil {
		if !r.opts.DryRun {
			return fmt.Errorf("failed to resolve Gitea organization %s: %w", run.Org, err)
		}
		// a real run would create it first
		logger.Warn("Gitea organization not found, it would be created", "org", run.Org, "error", err)
		uid = 0
	}

	repos, err := r.src.ListOrgRepos(ctx, run.Org)
	if err != nil {
		return err
	}
	r.submitAll(ctx, repos, OwnerByID(uid))
	return ctx.Err()
}

func (r *Runner) mirrorStars(ctx context.Context, run config.RunConfig) error {
	uid, err := r.dst.GetOrgID(ctx, run.Org)
	if err != nil {
		return fmt.Errorf("failed to resolve Gitea organization %s: %w", run.Org, err)
	}

	repos, err := r.src.ListStarredRepos(ctx, run.Username)
	if err != nil {
		return err
	}
	r.submitAll(ctx, repos, OwnerByID(uid))
	return ctx.Err()
}

func (r *Runner) mirrorUser(ctx context.Context, run config.RunConfig) error {
	uid, err := r.dst.GetUserID(ctx, run.Username)
	if err != nil {
		return fmt.Errorf("failed to resolve Gitea user %s: %w", run.Username, err)
	}

	// /user/repos lists the token owner's repositories whatever --username says
	if login, err := r.src.ViewerLogin(ctx); err != nil {
		logger.Warn("Could not determine GitHub token owner", "error", err)
	} else if !strings.EqualFold(login, run.Username) {
		logger.Warn("GitHub token belongs to another user, mirroring that user's repositories", "username", run.Username, "token_owner", login)
	}

	repos, err := r.src.ListOwnedRepos(ctx)
	if err != nil {
		return err
	}
	r.submitAll(ctx, repos, OwnerByID(uid))
	return ctx.Err()
}

func (r *Runner) mirrorRepo(ctx context.Context, run config.RunConfig) error {
	owner, name, err := github.ParseRepoReference(run.Repo)
	if err != nil {
		return err
	}

	repo, err := r.src.GetRepository(ctx, owner, name)
	if err != nil {
		return err
	}
	r.submitAll(ctx, []github.SourceRepository{repo}, OwnerByName(run.Username))
	return ctx.Err()
}

// submitAll submits repos in listing order and keeps going past failures
func (r *Runner) submitAll(ctx context.Context, repos []github.SourceRepository, owner Owner) {
	if len(repos) == 0 {
		logger.Info("No repositories found")
		return
	}

	for i, repo := range repos {
		if ctx.Err() != nil {
			return
		}
		r.stats.Total++
		logger.Info("Migrating repository", "repo", repo.Name, "visibility", repo.Visibility, "fork", repo.Fork, "index", fmt.Sprintf("%d/%d", i+1, len(repos)))
		r.submit(ctx, repo, owner)
	}
}

func (r *Runner) submit(ctx context.Context, repo github.SourceRepository, owner Owner) {
	req := BuildRequest(repo, owner, r.opts.Source)

	if r.opts.DryRun {
		logger.Info("Dry run, not submitting", "repo", req.RepoName, "clone_addr", req.CloneAddr, "uid", req.UID, "repo_owner", req.RepoOwner, "private", req.Private, "with_credentials", req.Credentials != nil)
		r.stats.Skipped++
		return
	}

	if req.Private && r.opts.Source.Token == "" {
		logger.Error("Migration failed", "repo", repo.Name, "error", ErrNoCloneCredentials)
		r.stats.Failed++
		r.stats.FailedRepos = append(r.stats.FailedRepos, repo.Name)
		return
	}

	err := r.dst.Migrate(ctx, req)
	switch {
	case err == nil:
		logger.Info("Mirror created", "repo", repo.Name)
		r.stats.Migrated++
	case errors.Is(err, gitea.ErrAlreadyExists):
		logger.Info("Mirror already exists, skipping", "repo", repo.Name)
		r.stats.Skipped++
	default:
		var apiErr *gitea.APIError
		if errors.As(err, &apiErr) {
			logger.Error("Migration failed", "repo", repo.Name, "status", apiErr.StatusCode, "body", apiErr.Body)
		} else {
			logger.Error("Migration failed", "repo", repo.Name, "error", err)
		}
		r.stats.Failed++
		r.stats.FailedRepos = append(r.stats.FailedRepos, repo.Name)
	}
}

func (r *Runner) logSummary() {
	logger.Info("Mirroring finished",
		"total", r.stats.Total,
		"migrated", r.stats.Migrated,
		"skipped", r.stats.Skipped,
		"failed", r.stats.Failed)
	for _, name := range r.stats.FailedRepos {
		logger.Warn("Failed repository", "repo", name)
	}
}
