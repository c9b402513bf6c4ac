package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/krrrr38/github-2-gitea/pkg/logger"
	"github.com/krrrr38/github-2-gitea/pkg/utils"
)

// PageSize is the per_page value of every listing request
const PageSize = 100

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

var ErrInvalidRepoReference = errors.New("invalid repository reference")

// SourceRepository is the part of a GitHub repository a mirror needs
type SourceRepository struct {
	Name        string
	FullName    string
	CloneURL    string
	Description string
	Visibility  string
	Fork        bool
}

// IsPrivate reports whether cloning the repository needs credentials
func (r SourceRepository) IsPrivate() bool {
	return r.Visibility == VisibilityPrivate
}

func fromGitHub(repo *github.Repository) SourceRepository {
	// internal repositories need credentials just like private ones
	visibility := VisibilityPublic
	switch strings.ToLower(repo.GetVisibility()) {
	case "private", "internal":
		visibility = VisibilityPrivate
	case "":
		if repo.GetPrivate() {
			visibility = VisibilityPrivate
		}
	}

	return SourceRepository{
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		CloneURL:    repo.GetCloneURL(),
		Description: repo.GetDescription(),
		Visibility:  visibility,
		Fork:        repo.GetFork(),
	}
}

// ListOrgRepos lists every repository of a GitHub organization
func (client *Client) ListOrgRepos(ctx context.Context, org string) ([]SourceRepository, error) {
	return client.paginate(ctx, fmt.Sprintf("organization %s", org), func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, error) {
		repos, _, err := client.inner.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{ListOptions: opts})
		return repos, err
	})
}

// ListStarredRepos lists the repositories a GitHub user has starred
func (client *Client) ListStarredRepos(ctx context.Context, user string) ([]SourceRepository, error) {
	return client.paginate(ctx, fmt.Sprintf("stars of %s", user), func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, error) {
		starred, _, err := client.inner.Activity.ListStarred(ctx, user, &github.ActivityListStarredOptions{ListOptions: opts})
		if err != nil {
			return nil, err
		}
		repos := make([]*github.Repository, 0, len(starred))
		for _, s := range starred {
			if s.Repository != nil {
				repos = append(repos, s.Repository)
			}
		}
		return repos, nil
	})
}

// ListOwnedRepos lists the repositories owned by the token's user, private ones included
func (client *Client) ListOwnedRepos(ctx context.Context) ([]SourceRepository, error) {
	return client.paginate(ctx, "owned repositories", func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, error) {
		repos, _, err := client.inner.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
			Affiliation: "owner",
			ListOptions: opts,
		})
		return repos, err
	})
}

// GetRepository looks up a single repository
func (client *Client) GetRepository(ctx context.Context, owner, name string) (SourceRepository, error) {
	logger.Info("Fetching repository", "owner", owner, "repo", name)

	var repo *github.Repository
	err := utils.RetryableOperation(ctx, client.retries, IsRetryableError, func() error {
		var err error
		repo, _, err = client.inner.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return SourceRepository{}, fmt.Errorf("failed to get GitHub repository %s/%s: %w", owner, name, err)
	}
	return fromGitHub(repo), nil
}

// paginate fetches 1-indexed pages until one comes back empty.
// Any failure discards what was collected so far.
func (client *Client) paginate(ctx context.Context, what string, fetch func(context.Context, github.ListOptions) ([]*github.Repository, error)) ([]SourceRepository, error) {
	var collected []SourceRepository

	for page := 1; ; page++ {
		logger.Info("Fetching page", "listing", what, "page", page)

		var repos []*github.Repository
		err := utils.RetryableOperation(ctx, client.retries, IsRetryableError, func() error {
			var err error
			repos, err = fetch(ctx, github.ListOptions{Page: page, PerPage: PageSize})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s (page %d): %w", what, page, err)
		}
		if len(repos) == 0 {
			break
		}

		for _, r := range repos {
			collected = append(collected, fromGitHub(r))
		}
		logger.Debug("Fetched page", "listing", what, "page", page, "count", len(repos))
	}

	logger.Info("Listing complete", "listing", what, "total", len(collected))
	return collected, nil
}

// ParseRepoReference extracts owner and name from a repository URL or an
// owner/name pair, e.g. https://github.com/acme/widgets.git -> acme, widgets
func ParseRepoReference(ref string) (string, string, error) {
	s := strings.TrimSpace(ref)

	switch {
	case strings.Contains(s, "://"):
		s = s[strings.Index(s, "://")+3:]
		// drop host (and any user info before it)
		if i := strings.Index(s, "/"); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
	case strings.HasPrefix(s, "git@"):
		if i := strings.Index(s, ":"); i >= 0 {
			s = s[i+1:]
		}
	case strings.HasPrefix(s, "github.com/"):
		s = strings.TrimPrefix(s, "github.com/")
	}

	s = strings.Trim(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q (expected https://github.com/<owner>/<name>[.git] or <owner>/<name>)", ErrInvalidRepoReference, ref)
	}
	return parts[0], parts[1], nil
}
