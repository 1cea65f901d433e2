package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/auth"
	"github.com/kohakuhub/hub/internal/stats"
)

// dedupTTL bounds how long one (session, repo) download hit is
// deduplicated for, spec §4.I's per-day counting rule.
const dedupTTL = 24 * time.Hour

// ResolveFile implements `GET|HEAD /{type}s/{ns}/{name}/resolve/{revision}/{path}`:
// permission check, presigned redirect, and the async download-stats
// side effect (spec §4.G).
func (h *Handlers) ResolveFile(c *fiber.Ctx) error {
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
	path := c.Params("*")

	redirect, err := h.Resolve.Resolve(c.Context(), repo, revision, path)
	if err != nil {
		return WithError(c, err)
	}

	c.Set("X-Repo-Commit", redirect.CommitOID)
	c.Set("ETag", redirect.ETag)
	c.Set("Content-Length", strconv.FormatInt(redirect.ContentLength, 10))

	if redirect.IsLFS {
		c.Set("X-Linked-Size", strconv.FormatInt(redirect.LinkedSize, 10))
		c.Set("X-Linked-Etag", redirect.LinkedETag)
	}

	if redirect.Source != "" {
		c.Set("X-Source", redirect.Source)
		c.Set("X-Source-URL", redirect.URL)
	}

	sessionSeen := h.sawThisSession(c, repo.ID)

	// With a stats producer the daily row is written by the consumer, so
	// RecordDownload only bumps the lifetime counter here.
	if err := h.Resolve.RecordDownload(c.Context(), repo, !identity.Anonymous(), sessionSeen || h.Stats != nil); err != nil {
		h.Logger.Errorf("resolve: failed to record download for %s: %s", repo.FullID, err)
	}

	if h.Stats != nil && !sessionSeen {
		event := stats.DownloadEvent{
			RepositoryID: repo.ID, Date: time.Now().UTC().Format("2006-01-02"),
			Authenticated: !identity.Anonymous(), SessionKey: sessionKey(c),
		}
		if err := h.Stats.Publish(c.Context(), event); err != nil {
			h.Logger.Errorf("resolve: failed to publish download event for %s: %s", repo.FullID, err)
		}
	}

	if c.Method() == fiber.MethodHead {
		return c.SendStatus(fiber.StatusOK)
	}

	return c.Redirect(redirect.URL, fiber.StatusFound)
}

// Reconstruct implements the top-level `GET /cas/reconstructions/{sha256}`
// (spec §4.G/§6): the hash alone locates the owning repo, which is then
// permission-checked before the manifest is built.
func (h *Handlers) Reconstruct(c *fiber.Ctx) error {
	repo, file, err := h.Resolve.LookupBySHA256(c.Context(), c.Params("sha256"))
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

	manifest, err := h.Resolve.Reconstruct(c.Context(), repo, file)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(manifest)
}

// xetReadTokenTTL bounds the lifetime reported on the xet-read-token
// response; this hub never implements the xet CAS protocol itself, so
// the token simply mirrors the resolve redirect's own presign window.
const xetReadTokenTTL = 3600

// XetReadToken implements `GET /api/{type}s/{ns}/{name}/xet-read-token/{revision}/{path}`.
// The hub has no xet CAS backend, so this reports the hub's own
// /cas/reconstructions endpoint as the cas-url with an empty access
// token, matching what a HF client expects when xet is effectively
// disabled server-side.
func (h *Handlers) XetReadToken(c *fiber.Ctx) error {
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

	c.Set("X-Xet-Cas-Url", h.Config.BaseURL+"/cas/reconstructions")
	c.Set("X-Xet-Access-Token", "")
	c.Set("X-Xet-Token-Expiration", strconv.FormatInt(time.Now().Add(xetReadTokenTTL*time.Second).Unix(), 10))

	return c.JSON(fiber.Map{})
}

// sawThisSession reports whether (sessionKey, repo, today) was already
// recorded, using Redis SetNX the way the teacher's idempotency-key
// check acquires a once-only lock. A nil Dedup client means every hit
// counts as new (no dedup available).
func (h *Handlers) sawThisSession(c *fiber.Ctx, repoID int64) bool {
	if h.Dedup == nil {
		return false
	}

	key := fmt.Sprintf("dedup:download:%d:%s:%s", repoID, sessionKey(c), time.Now().UTC().Format("2006-01-02"))

	acquired, err := h.Dedup.SetNX(c.Context(), key, "1", dedupTTL).Result()
	if err != nil {
		return false
	}

	return !acquired
}

// sessionKey identifies the requester for dedup/stats purposes: the
// session cookie when present, otherwise the client IP.
func sessionKey(c *fiber.Ctx) string {
	if sid := c.Cookies("session"); sid != "" {
		return sid
	}

	return c.IP()
}
