package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/auth"
	"github.com/kohakuhub/hub/internal/lfs"
	"github.com/kohakuhub/hub/internal/storage/ros"
)

// LFSBatch implements `POST /{type}s/{ns}/{name}.git/info/lfs/objects/batch`
// (spec §4.E/§6).
func (h *Handlers) LFSBatch(c *fiber.Ctx) error {
	repo, err := h.loadRepo(c.Context(), c.Params("type"), c.Params("namespace"), c.Params("name"))
	if err != nil {
		return WithError(c, err)
	}

	var req lfs.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, apperr.NewValidation("BadRequest", "malformed batch request body"))
	}

	identity := identityFrom(c)

	var allowed bool

	if req.Operation == "upload" {
		allowed, err = auth.CanWrite(c.Context(), h.Store, identity, repo)
	} else {
		allowed, err = auth.CanRead(c.Context(), h.Store, identity, repo)
	}

	if err != nil {
		return WithError(c, err)
	}

	if !allowed {
		return WithError(c, apperr.NewForbidden("Forbidden", "insufficient permission for lfs batch"))
	}

	resp, err := lfs.Negotiate(c.Context(), h.Store, h.ROS, repo, req)
	if err != nil {
		return WithError(c, err)
	}

	c.Set("Content-Type", "application/vnd.git-lfs+json")

	return c.JSON(resp)
}

// lfsVerifyRequest is the body of the per-object verify callback.
type lfsVerifyRequest struct {
	OID  string `json:"oid" validate:"required"`
	Size int64  `json:"size" validate:"required"`
}

// LFSVerify implements the `verify` action href from the batch
// response: confirm the uploaded object matches its declared size and
// record it in the dedup registry (spec §4.E.3).
func (h *Handlers) LFSVerify(c *fiber.Ctx) error {
	var req lfsVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, apperr.NewValidation("BadRequest", "malformed verify request body"))
	}

	if err := lfs.Verify(c.Context(), h.Store, h.ROS, req.OID, req.Size); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// wirePartETag is the JSON shape of one completed part, snake_case per
// the LFS/S3 multipart convention; ros.PartETag itself carries no json
// tags since it is also used internally, so the wire body is decoded
// into this shape and converted.
type wirePartETag struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// lfsCompleteRequest is the body of the multipart `complete_href` callback.
type lfsCompleteRequest struct {
	OID      string         `json:"oid" validate:"required"`
	Size     int64          `json:"size" validate:"required"`
	UploadID string         `json:"upload_id" validate:"required"`
	Parts    []wirePartETag `json:"parts" validate:"required"`
}

// LFSCompleteMultipart implements the multipart completion callback
// (spec §4.E.2): finalize the multipart upload then run the same
// verify step a single-PUT upload goes through.
func (h *Handlers) LFSCompleteMultipart(c *fiber.Ctx) error {
	var req lfsCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, apperr.NewValidation("BadRequest", "malformed complete request body"))
	}

	parts := make([]ros.PartETag, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, ros.PartETag{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	if err := lfs.CompleteMultipart(c.Context(), h.Store, h.ROS, req.OID, req.Size, req.UploadID, parts); err != nil {
		return WithError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
