package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// ErrEphemeralToken is returned by Token when the client only holds
// short lived credentials that must not be stored by Gitea
var ErrEphemeralToken = errors.New("GitHub App installation tokens expire and cannot be used as mirror credentials")

// Client wraps the GitHub REST and GraphQL clients used to list source repositories
type Client struct {
	httpClient *http.Client
	inner      *github.Client
	v4         *githubv4.Client
	retries    int
	token      func(ctx context.Context) (string, error)
}

// Option customizes a Client
type Option func(*Client) error

// WithBaseURL points the client at a GitHub Enterprise (or test) API root
func WithBaseURL(baseURL string) Option {
	return func(client *Client) error {
		if baseURL == "" {
			return nil
		}
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return fmt.Errorf("invalid GitHub URL %q: %w", baseURL, err)
		}
		client.inner.BaseURL = u
		client.v4 = githubv4.NewEnterpriseClient(u.String()+"graphql", client.httpClient)
		return nil
	}
}

// WithRetries retries transient failures (5xx, 429, network) up to n times
func WithRetries(n int) Option {
	return func(client *Client) error {
		client.retries = n
		return nil
	}
}

// NewClientByPAT creates a new GitHub client with the provided token
func NewClientByPAT(token string, opts ...Option) (*Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return newClient(tc, func(context.Context) (string, error) { return token, nil }, opts...)
}

// NewClientByApp creates a client authenticated as a GitHub App installation.
// Installation tokens expire after an hour while Gitea keeps syncing the
// mirror with the stored password, so Token refuses with ErrEphemeralToken.
func NewClientByApp(appID, installationID int, privateKey string, opts ...Option) (*Client, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, int64(appID), int64(installationID), []byte(privateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	client, err := newClient(&http.Client{Transport: itr}, func(context.Context) (string, error) { return "", ErrEphemeralToken }, opts...)
	if err != nil {
		return nil, err
	}
	if client.inner.BaseURL.String() != "https://api.github.com/" {
		itr.BaseURL = strings.TrimSuffix(client.inner.BaseURL.String(), "/")
	}
	return client, nil
}

func newClient(httpClient *http.Client, token func(context.Context) (string, error), opts ...Option) (*Client, error) {
	client := &Client{
		httpClient: httpClient,
		inner:      github.NewClient(httpClient),
		v4:         githubv4.NewClient(httpClient),
		token:      token,
	}
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// Token returns the credential Gitea should use to clone private repositories
func (client *Client) Token(ctx context.Context) (string, error) {
	token, err := client.token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain GitHub token: %w", err)
	}
	return token, nil
}

// ViewerLogin returns the login of the account the token belongs to
func (client *Client) ViewerLogin(ctx context.Context) (string, error) {
	var query struct {
		Viewer struct {
			Login githubv4.String
		}
	}
	if err := client.v4.Query(ctx, &query, nil); err != nil {
		return "", fmt.Errorf("failed to query GitHub viewer: %w", err)
	}
	return string(query.Viewer.Login), nil
}

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		// waiting for the reset may take an hour, leave it to the next run
		return false
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return code == http.StatusTooManyRequests ||
			code == http.StatusInternalServerError ||
			code == http.StatusBadGateway ||
			code == http.StatusServiceUnavailable ||
			code == http.StatusGatewayTimeout
	}

	// Also retry on network/transport errors
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}
