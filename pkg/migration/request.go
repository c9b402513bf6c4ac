package migration

import (
	"github.com/krrrr38/github-2-gitea/pkg/gitea"
	"github.com/krrrr38/github-2-gitea/pkg/github"
	"github.com/krrrr38/github-2-gitea/pkg/utils"
)

// Owner addresses the Gitea account a mirror is created under
type Owner struct {
	id   int64
	name string
}

// OwnerByID is used by the bulk modes (org, star, user)
func OwnerByID(uid int64) Owner {
	return Owner{id: uid}
}

// OwnerByName is used by the single repository mode
func OwnerByName(name string) Owner {
	return Owner{name: name}
}

// SourceCredentials are the GitHub username and token Gitea clones private repositories with
type SourceCredentials struct {
	Username string
	Token    string
}

// BuildRequest maps a GitHub repository to a Gitea mirror migration
func BuildRequest(repo github.SourceRepository, owner Owner, creds SourceCredentials) gitea.MigrateRepoOptions {
	req := gitea.MigrateRepoOptions{
		RepoName:    repo.Name,
		CloneAddr:   repo.CloneURL,
		Description: utils.TruncateText(repo.Description, utils.MaxDescriptionLength),
		Mirror:      true,
		Private:     repo.IsPrivate(),
	}

	if owner.name != "" {
		req.RepoOwner = owner.name
	} else {
		req.UID = owner.id
	}

	if req.Private {
		req.Credentials = &gitea.Credentials{
			AuthUsername: creds.Username,
			AuthPassword: creds.Token,
		}
	}
	return req
}
