package httpapi

import (
	"context"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// parseRepoType maps the URL's plural segment ("models", "datasets",
// "spaces") to a metadata.RepoType, spec §6's `{type}s` convention.
func parseRepoType(segment string) (metadata.RepoType, error) {
	switch segment {
	case "models":
		return metadata.RepoTypeModel, nil
	case "datasets":
		return metadata.RepoTypeDataset, nil
	case "spaces":
		return metadata.RepoTypeSpace, nil
	default:
		return "", apperr.NewValidation("InvalidRepoType", "unknown repository type "+segment)
	}
}

// loadRepo resolves (repoType, namespace, name) to a Repository,
// mapping a missing row to the RepoNotFound wire code every route that
// operates on an existing repo needs.
func (h *Handlers) loadRepo(ctx context.Context, repoTypeSeg, namespace, name string) (*metadata.Repository, error) {
	repoType, err := parseRepoType(repoTypeSeg)
	if err != nil {
		return nil, err
	}

	repo, err := h.Store.Repositories().FindByFullID(ctx, repoType, namespace, name)
	if err != nil {
		if apperr.StatusCode(err) == 404 {
			return nil, apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", "repository not found")
		}

		return nil, err
	}

	return repo, nil
}
