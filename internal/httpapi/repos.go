package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/auth"
	"github.com/kohakuhub/hub/internal/metadata"
)

// createRepoRequest is the body of POST /api/repos/create.
type createRepoRequest struct {
	Type         string `json:"type" validate:"required,oneof=model dataset space"`
	Name         string `json:"name" validate:"required,min=1,max=96"`
	Organization string `json:"organization"`
	Private      bool   `json:"private"`
}

// CreateRepo implements spec §6's `POST /api/repos/create`: resolve the
// owning namespace, derive the VOS repository name, create the VOS
// repository, then persist the Repository row. A conflicting full id
// surfaces as 409 RepoExists.
func (h *Handlers) CreateRepo(c *fiber.Ctx) error {
	var req createRepoRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, apperr.NewValidation("BadRequest", "malformed request body"))
	}

	if err := ValidateStruct(req); err != nil {
		return WithError(c, err)
	}

	identity := identityFrom(c)
	if identity.Anonymous() {
		return WithError(c, apperr.NewUnauthorized("Unauthorized", "login required"))
	}

	ctx := c.Context()

	namespace := identity.User.Username
	ownerID := identity.User.ID

	if req.Organization != "" {
		org, err := h.Store.Users().FindByUsername(ctx, req.Organization)
		if err != nil {
			return WithError(c, err)
		}

		membership, err := h.Store.Users().Membership(ctx, org.ID, identity.User.ID)
		if err != nil || membership.Role == metadata.RoleVisitor {
			return WithError(c, apperr.NewForbidden("Forbidden", "not a member of "+req.Organization))
		}

		namespace = org.Username
		ownerID = org.ID
	}

	repoType := metadata.RepoType(req.Type)
	fullID := namespace + "/" + req.Name

	if _, err := h.Store.Repositories().FindByFullID(ctx, repoType, namespace, req.Name); err == nil {
		return WithError(c, apperr.NewConflict(apperr.EntityRepository, "RepoExists", "repository already exists"))
	}

	vosName := metadata.DeriveVOSName(repoType, fullID)
	storageNamespace := h.Config.LakeFSRepoNamespace + "/" + vosName

	if err := h.VOS.CreateRepository(ctx, vosName, storageNamespace, "main"); err != nil {
		return WithError(c, err)
	}

	repo, err := h.Store.Repositories().Create(ctx, &metadata.Repository{
		RepoType: repoType, Namespace: namespace, Name: req.Name, FullID: fullID,
		Private: req.Private, OwnerID: ownerID, VOSRepoName: vosName, DefaultBranch: "main",
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{
		"url":      h.Config.BaseURL + "/" + req.Type + "s/" + repo.FullID,
		"endpoint": h.Config.BaseURL,
	})
}

// deleteRepoRequest is the body of DELETE /api/repos/delete.
type deleteRepoRequest struct {
	Type         string `json:"type" validate:"required,oneof=model dataset space"`
	Name         string `json:"name" validate:"required"`
	Organization string `json:"organization"`
}

// DeleteRepo implements spec §6's `DELETE /api/repos/delete`.
func (h *Handlers) DeleteRepo(c *fiber.Ctx) error {
	var req deleteRepoRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, apperr.NewValidation("BadRequest", "malformed request body"))
	}

	if err := ValidateStruct(req); err != nil {
		return WithError(c, err)
	}

	namespace := req.Organization
	identity := identityFrom(c)

	if namespace == "" {
		if identity.Anonymous() {
			return WithError(c, apperr.NewUnauthorized("Unauthorized", "login required"))
		}

		namespace = identity.User.Username
	}

	ctx := c.Context()

	repoType := metadata.RepoType(req.Type)

	repo, err := h.Store.Repositories().FindByFullID(ctx, repoType, namespace, req.Name)
	if err != nil {
		return WithError(c, apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", "repository not found"))
	}

	allowed, err := auth.CanDelete(ctx, h.Store, identity, repo)
	if err != nil {
		return WithError(c, err)
	}

	if !allowed {
		return WithError(c, apperr.NewForbidden("Forbidden", "insufficient permission to delete repository"))
	}

	if err := h.VOS.DeleteRepository(ctx, repo.VOSRepoName); err != nil {
		return WithError(c, err)
	}

	if err := h.Store.Repositories().Delete(ctx, repo.ID); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// ListRepos implements `GET /api/{type}s`.
func (h *Handlers) ListRepos(c *fiber.Ctx) error {
	repoType, err := parseRepoType(c.Params("type"))
	if err != nil {
		return WithError(c, err)
	}

	identity := identityFrom(c)

	filter := metadata.RepositoryFilter{
		RepoType:   repoType,
		Author:     c.Query("author"),
		Search:     c.Query("search"),
		Limit:      queryInt(c, "limit", 50),
		PublicOnly: identity.Anonymous(),
	}

	repos, err := h.Store.Repositories().List(c.Context(), filter)
	if err != nil {
		return WithError(c, err)
	}

	visible := make([]*metadata.Repository, 0, len(repos))

	for i := range repos {
		ok, err := auth.CanRead(c.Context(), h.Store, identity, &repos[i])
		if err != nil {
			return WithError(c, err)
		}

		if ok {
			visible = append(visible, &repos[i])
		}
	}

	return c.JSON(visible)
}

// GetRepo implements `GET /api/{type}s/{ns}/{name}`.
func (h *Handlers) GetRepo(c *fiber.Ctx) error {
	repo, err := h.loadRepo(c.Context(), c.Params("type"), c.Params("namespace"), c.Params("name"))
	if err != nil {
		return WithError(c, err)
	}

	identity := identityFrom(c)

	ok, err := auth.CanRead(c.Context(), h.Store, identity, repo)
	if err != nil {
		return WithError(c, err)
	}

	if !ok {
		return WithError(c, apperr.NewForbidden("GatedRepo", "repository is private"))
	}

	return c.JSON(repo)
}

// treeEntry is one row of a tree listing response.
type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" | "directory" — flattened listing reports "file" only
	Size int64  `json:"size"`
	OID  string `json:"oid"`
	LFS  bool   `json:"lfs"`
}

// Tree implements `GET /api/{type}s/{ns}/{name}/tree/{revision}/{path?}`.
func (h *Handlers) Tree(c *fiber.Ctx) error {
	repo, err := h.loadRepo(c.Context(), c.Params("type"), c.Params("namespace"), c.Params("name"))
	if err != nil {
		return WithError(c, err)
	}

	identity := identityFrom(c)

	ok, err := auth.CanRead(c.Context(), h.Store, identity, repo)
	if err != nil {
		return WithError(c, err)
	}

	if !ok {
		return WithError(c, apperr.NewForbidden("GatedRepo", "repository is private"))
	}

	revision := c.Params("revision")
	prefix := c.Params("*")

	var entries []treeEntry

	after := ""

	for {
		files, err := h.Store.Files().ListByPrefix(c.Context(), repo.ID, revision, prefix, after, 500)
		if err != nil {
			return WithError(c, err)
		}

		if len(files) == 0 {
			break
		}

		for _, f := range files {
			if f.IsDeleted {
				continue
			}

			entries = append(entries, treeEntry{Path: f.PathInRepo, Type: "file", Size: f.Size, OID: f.SHA256, LFS: f.LFS})
		}

		after = files[len(files)-1].PathInRepo

		if len(files) < 500 {
			break
		}
	}

	return c.JSON(entries)
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return n
}
