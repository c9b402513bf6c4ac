package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/krrrr38/github-2-gitea/pkg/config"
	"github.com/krrrr38/github-2-gitea/pkg/migration"
	"github.com/stretchr/testify/require"
)

// fakeHosts serves both the GitHub API (under /gh) and the Gitea API (under /api/v1)
type fakeHosts struct {
	mu         sync.Mutex
	hits       []string
	migrations []map[string]interface{}
	conflicts  map[string]bool
	failures   map[string]bool
	server     *httptest.Server
}

func newFakeHosts(t *testing.T) *fakeHosts {
	t.Helper()
	f := &fakeHosts{conflicts: map[string]bool{}, failures: map[string]bool{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeHosts) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, r.Method+" "+r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/gh/graphql":
		_, _ = io.WriteString(w, `{"data":{"viewer":{"login":"alice"}}}`)
	case r.URL.Path == "/gh/user/repos":
		if r.URL.Query().Get("page") != "1" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[
			{"name":"foo","clone_url":"https://github.com/alice/foo.git","visibility":"public"},
			{"name":"bar","clone_url":"https://github.com/alice/bar.git","visibility":"private","description":"`+strings.Repeat("d", 300)+`"}
		]`)
	case r.URL.Path == "/gh/orgs/acme/repos":
		if r.URL.Query().Get("page") != "1" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[{"name":"widgets","clone_url":"https://github.com/acme/widgets.git","visibility":"private"}]`)
	case r.URL.Path == "/gh/app/installations/2/access_tokens":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"token":"ghs_installation","expires_at":"2099-01-01T00:00:00Z"}`)
	case r.URL.Path == "/gh/repos/acme/widgets":
		_, _ = io.WriteString(w, `{"name":"widgets","clone_url":"https://github.com/acme/widgets.git","visibility":"private"}`)
	case r.URL.Path == "/api/v1/users/alice":
		_, _ = io.WriteString(w, `{"id":7,"login":"alice"}`)
	case r.URL.Path == "/api/v1/repos/migrate":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.migrations = append(f.migrations, body)
		name, _ := body["repo_name"].(string)
		switch {
		case f.conflicts[name]:
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message":"The repository with the same name already exists."}`)
		case f.failures[name]:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":"migration failed"}`)
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":100}`)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}
}

func (f *fakeHosts) args(mode ...string) []string {
	return append([]string{
		"--gitea-url", f.server.URL,
		"--gitea-token", "gt",
		"--github-token", "ghp_secret",
		"--github-url", f.server.URL + "/gh",
		"--log-level", "error",
	}, mode...)
}

func execute(t *testing.T, args []string) error {
	t.Helper()
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.Execute()
}

func TestMissingVisibilityFailsBeforeAnyRequest(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("org", "--org", "acme", "--username", "alice"))
	require.ErrorIs(t, err, config.ErrMissingParameter)
	require.Contains(t, err.Error(), "--visibility")
	require.Empty(t, f.hits)
}

func TestMissingCredentialsFailBeforeAnyRequest(t *testing.T) {
	t.Setenv("GITEA_TOKEN", "")
	f := newFakeHosts(t)

	err := execute(t, []string{"--gitea-url", f.server.URL, "--github-token", "ghp", "user", "--username", "alice"})
	require.ErrorIs(t, err, config.ErrMissingCredentials)
	require.Empty(t, f.hits)
}

func TestUnknownFlagForMode(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("user", "--username", "alice", "--visibility", "private"))
	require.Error(t, err)
	require.Empty(t, f.hits)
}

func TestUserModeRerunIsIdempotent(t *testing.T) {
	f := newFakeHosts(t)
	f.conflicts["foo"] = true

	err := execute(t, f.args("user", "--username", "alice"))
	require.NoError(t, err)

	require.Len(t, f.migrations, 2)
	foo, bar := f.migrations[0], f.migrations[1]
	require.EqualValues(t, 7, foo["uid"])
	require.NotContains(t, foo, "auth_password")
	require.Equal(t, true, bar["private"])
	require.Equal(t, "alice", bar["auth_username"])
	require.Equal(t, "ghp_secret", bar["auth_password"])
	require.Len(t, bar["description"], 255)
}

func TestUserModeReportsFailures(t *testing.T) {
	f := newFakeHosts(t)
	f.failures["foo"] = true

	err := execute(t, f.args("user", "--username", "alice"))
	require.ErrorIs(t, err, migration.ErrIncomplete)
	require.Len(t, f.migrations, 2)
}

func TestRepoModeNormalizesURL(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("repo", "-r", "https://github.com/acme/widgets.git", "-u", "alice"))
	require.NoError(t, err)

	require.Contains(t, f.hits, "GET /gh/repos/acme/widgets")
	require.Len(t, f.migrations, 1)
	m := f.migrations[0]
	require.Equal(t, "alice", m["repo_owner"])
	require.NotContains(t, m, "uid")
	require.Equal(t, "widgets", m["repo_name"])
	require.Equal(t, true, m["mirror"])
	require.Equal(t, "ghp_secret", m["auth_password"])
}

func TestDryRunSubmitsNothing(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("--dry-run", "user", "--username", "alice"))
	require.NoError(t, err)
	require.Empty(t, f.migrations)
}

func TestOrgModeUnknownDestinationOrgIsFatal(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("org", "--org", "acme", "--username", "alice", "--visibility", "private"))
	require.Error(t, err)
	require.NotErrorIs(t, err, migration.ErrIncomplete)
	require.Empty(t, f.migrations)
	require.Equal(t, []string{"POST /api/v1/orgs", "GET /api/v1/orgs/acme"}, f.hits)
}

func TestDryRunOrgModeMakesNoWrites(t *testing.T) {
	f := newFakeHosts(t)

	err := execute(t, f.args("--dry-run", "org", "--org", "acme", "--username", "alice", "--visibility", "private"))
	require.NoError(t, err)
	require.Empty(t, f.migrations)
	require.Contains(t, f.hits, "GET /gh/orgs/acme/repos")
	for _, hit := range f.hits {
		require.False(t, strings.HasPrefix(hit, http.MethodPost), "unexpected write %s", hit)
	}
}

func TestAppCredentialsMirrorOnlyPublicRepos(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	f := newFakeHosts(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	err = execute(t, []string{
		"--gitea-url", f.server.URL,
		"--gitea-token", "gt",
		"--github-url", f.server.URL + "/gh",
		"--github-app-id", "1",
		"--github-app-installation-id", "2",
		"--github-app-private-key", string(pemKey),
		"--log-level", "error",
		"user", "--username", "alice",
	})
	require.ErrorIs(t, err, migration.ErrIncomplete)
	require.Contains(t, err.Error(), "bar")

	require.Len(t, f.migrations, 1)
	require.Equal(t, "foo", f.migrations[0]["repo_name"])
	require.NotContains(t, f.migrations[0], "auth_password")
}
