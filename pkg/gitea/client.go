package gitea

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/krrrr38/github-2-gitea/pkg/logger"
	"github.com/krrrr38/github-2-gitea/pkg/utils"
)

// ErrAlreadyExists is returned when Gitea reports the target repository or
// organization exists (409 on migrate, 422 on organization creation)
var ErrAlreadyExists = errors.New("already exists")

// APIError is a non-success Gitea response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitea %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// Credentials let Gitea clone a private source repository.
// A nil *Credentials omits both fields from the payload.
type Credentials struct {
	AuthUsername string `json:"auth_username"`
	AuthPassword string `json:"auth_password"`
}

// MigrateRepoOptions is the body of POST /repos/migrate. Exactly one of UID
// and RepoOwner is set: bulk migrations address the owner by id, single
// repository migrations by name.
type MigrateRepoOptions struct {
	UID         int64  `json:"uid,omitempty"`
	RepoOwner   string `json:"repo_owner,omitempty"`
	RepoName    string `json:"repo_name"`
	CloneAddr   string `json:"clone_addr"`
	Description string `json:"description"`
	Mirror      bool   `json:"mirror"`
	Private     bool   `json:"private"`
	*Credentials
}

type createOrgOptions struct {
	Username   string `json:"username"`
	Visibility string `json:"visibility"`
}

type identity struct {
	ID int64 `json:"id"`
}

type Client struct {
	api     string
	cl      *resty.Client
	retries int
}

// Option customizes a Client
type Option func(*Client)

// WithRetries retries transient failures (5xx, network) of GET requests up to n times
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// New creates a client for the Gitea instance at baseURL, e.g. https://gitea.example.com
func New(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	c := &Client{
		api: baseURL + "/api/v1",
		cl: resty.New().
			SetHeader("Authorization", "token "+token).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrgID returns the id of an organization
func (c *Client) GetOrgID(ctx context.Context, org string) (int64, error) {
	logger.Info("Resolving Gitea organization", "org", org)
	return c.getID(ctx, "/orgs/"+url.PathEscape(org))
}

// GetUserID returns the id of a user
func (c *Client) GetUserID(ctx context.Context, user string) (int64, error) {
	logger.Info("Resolving Gitea user", "user", user)
	return c.getID(ctx, "/users/"+url.PathEscape(user))
}

func (c *Client) getID(ctx context.Context, path string) (int64, error) {
	var result identity
	err := c.do(ctx, http.MethodGet, path, nil, &result)
	if err != nil {
		return 0, err
	}
	if result.ID == 0 {
		return 0, fmt.Errorf("gitea GET %s: response has no id", path)
	}
	return result.ID, nil
}

// CreateOrg creates an organization. An existing one yields ErrAlreadyExists.
func (c *Client) CreateOrg(ctx context.Context, org, visibility string) error {
	logger.Info("Creating Gitea organization", "org", org, "visibility", visibility)

	err := c.do(ctx, http.MethodPost, "/orgs", createOrgOptions{Username: org, Visibility: visibility}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("organization %s: %w", org, ErrAlreadyExists)
	}
	return err
}

// Migrate creates a repository from opts. An existing one yields ErrAlreadyExists.
func (c *Client) Migrate(ctx context.Context, opts MigrateRepoOptions) error {
	logger.Debug("POST /repos/migrate", "repo", opts.RepoName, "clone_addr", opts.CloneAddr, "private", opts.Private)

	err := c.do(ctx, http.MethodPost, "/repos/migrate", opts, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("repository %s: %w", opts.RepoName, ErrAlreadyExists)
	}
	return err
}

// do sends one request, retrying transient failures of reads when configured.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	retries := c.retries
	if method != http.MethodGet {
		// a timed out POST may still have been applied
		retries = 0
	}
	return utils.RetryableOperation(ctx, retries, IsRetryableError, func() error {
		req := c.cl.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, c.api+path)
		if err != nil {
			return fmt.Errorf("gitea %s %s: %w", method, path, err)
		}
		if !resp.IsSuccess() {
			return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	})
}

// IsRetryableError reports server side and transport failures
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
