package httpapi

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/auth"
	"github.com/kohakuhub/hub/internal/commit"
)

// Commit implements `POST /api/{type}s/{ns}/{name}/commit/{revision}`:
// parse the NDJSON body, permission-check, and hand the operations to
// the commit engine (spec §4.F).
func (h *Handlers) Commit(c *fiber.Ctx) error {
	repo, err := h.loadRepo(c.Context(), c.Params("type"), c.Params("namespace"), c.Params("name"))
	if err != nil {
		return WithError(c, err)
	}

	identity := identityFrom(c)

	allowed, err := auth.CanWrite(c.Context(), h.Store, identity, repo)
	if err != nil {
		return WithError(c, err)
	}

	if !allowed {
		return WithError(c, apperr.NewForbidden("Forbidden", "insufficient permission to commit"))
	}

	ops, err := commit.ParseNDJSON(bytes.NewReader(c.Body()))
	if err != nil {
		return WithError(c, err)
	}

	result, err := h.Commit.Run(c.Context(), commit.Request{
		Repo: repo, Branch: c.Params("revision"), Operations: ops,
		AuthorID: &identity.User.ID, Username: identity.User.Username,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"commitOid": result.CommitOID, "commitUrl": result.CommitURL})
}

// commitListEntry is the wire shape for one row of the commit history.
type commitListEntry struct {
	ID      string `json:"id"`
	Message string `json:"title"`
	Author  string `json:"author"`
}

// Commits implements `GET /api/{type}s/{ns}/{name}/commits/{branch}`,
// paginated by `after` per spec §6.
func (h *Handlers) Commits(c *fiber.Ctx) error {
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

	commits, err := h.Store.Commits().List(c.Context(), repo.ID, c.Params("branch"), c.Query("after"), queryInt(c, "limit", 50))
	if err != nil {
		return WithError(c, err)
	}

	out := make([]commitListEntry, 0, len(commits))
	for _, cm := range commits {
		out = append(out, commitListEntry{ID: cm.CommitID, Message: cm.Message, Author: cm.Username})
	}

	return c.JSON(out)
}
