package lfs

import (
	"context"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/ros"
)

// BatchObject is one (oid, size) entry in an incoming batch request.
type BatchObject struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// BatchRequest is the git-lfs batch API request body.
type BatchRequest struct {
	Operation string        `json:"operation"` // "upload" | "download"
	Transfers []string      `json:"transfers,omitempty"`
	Objects   []BatchObject `json:"objects"`
}

// Action is one named hypermedia action (upload/download/verify/init/
// complete) in a batch response object.
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresIn int               `json:"expires_in,omitempty"`
}

// MultipartPlan is returned instead of a single upload action when the
// object exceeds the single-PUT ceiling (spec §4.E.2).
type MultipartPlan struct {
	UploadID   string   `json:"upload_id"`
	PartSize   int64    `json:"part_size"`
	PartURLs   []string `json:"part_urls"`
	CompleteURL string  `json:"complete_href"`
}

// ObjectResponse is one entry in the batch API response.
type ObjectResponse struct {
	OID       string            `json:"oid"`
	Size      int64             `json:"size"`
	Actions   map[string]Action `json:"actions,omitempty"`
	Multipart *MultipartPlan    `json:"multipart,omitempty"`
	Error     *ObjectError      `json:"error,omitempty"`
}

// ObjectError mirrors the git-lfs per-object error shape.
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchResponse is the git-lfs batch API response body.
type BatchResponse struct {
	Transfer string           `json:"transfer"`
	Objects  []ObjectResponse `json:"objects"`
}

const presignTTLSeconds = 3600

// Negotiate implements spec §4.E's batch negotiation: for each
// requested (oid, size), decide whether the object is already present
// (download-only, no upload needed), needs a single presigned PUT, or
// needs a multipart plan.
func Negotiate(ctx context.Context, store metadata.Store, rawStore ros.Store, repo *metadata.Repository, req BatchRequest) (*BatchResponse, error) {
	resp := &BatchResponse{Transfer: "basic", Objects: make([]ObjectResponse, 0, len(req.Objects))}
	base := "/" + string(repo.RepoType) + "s/" + repo.FullID + ".git/info/lfs"

	for _, obj := range req.Objects {
		if !ValidOID(obj.OID) {
			resp.Objects = append(resp.Objects, ObjectResponse{
				OID: obj.OID, Size: obj.Size,
				Error: &ObjectError{Code: 422, Message: "oid is not a well-formed sha256"},
			})

			continue
		}

		key := ros.LFSKey(obj.OID)

		_, found, err := rawStore.Head(ctx, key)
		if err != nil {
			return nil, apperr.WrapInternal(err, "ServerError", "failed to check object existence")
		}

		if found {
			if err := store.LFS().Touch(ctx, obj.OID, obj.Size); err != nil {
				return nil, err
			}

			resp.Objects = append(resp.Objects, ObjectResponse{OID: obj.OID, Size: obj.Size, Actions: map[string]Action{}})

			continue
		}

		if req.Operation == "download" {
			resp.Objects = append(resp.Objects, ObjectResponse{
				OID: obj.OID, Size: obj.Size,
				Error: &ObjectError{Code: 404, Message: "object not found"},
			})

			continue
		}

		objResp, err := planUpload(ctx, rawStore, key, base, obj)
		if err != nil {
			return nil, err
		}

		resp.Objects = append(resp.Objects, objResp)
	}

	return resp, nil
}

func planUpload(ctx context.Context, rawStore ros.Store, key, base string, obj BatchObject) (ObjectResponse, error) {
	if !NeedsMultipart(obj.Size) {
		uploadURL, err := rawStore.PresignPut(ctx, key, presignTTLSeconds)
		if err != nil {
			return ObjectResponse{}, err
		}

		return ObjectResponse{
			OID: obj.OID, Size: obj.Size,
			Actions: map[string]Action{
				"upload": {Href: uploadURL, ExpiresIn: presignTTLSeconds},
				"verify": {Href: base + "/verify", ExpiresIn: presignTTLSeconds},
			},
		}, nil
	}

	uploadID, err := rawStore.MultipartCreate(ctx, key)
	if err != nil {
		return ObjectResponse{}, err
	}

	numParts := PartPlan(obj.Size)
	partURLs := make([]string, numParts)

	for i := 0; i < numParts; i++ {
		url, err := rawStore.MultipartPresignPart(ctx, key, uploadID, int32(i+1), presignTTLSeconds) //nolint:gosec // part count bounded by PartPlan, never overflows int32
		if err != nil {
			return ObjectResponse{}, err
		}

		partURLs[i] = url
	}

	return ObjectResponse{
		OID: obj.OID, Size: obj.Size,
		Multipart: &MultipartPlan{
			UploadID:    uploadID,
			PartSize:    maxPartBytes,
			PartURLs:    partURLs,
			CompleteURL: base + "/complete-multipart",
		},
	}, nil
}

// Verify is called after the client finishes an upload: it HEADs the
// canonical key, checks the reported size matches, and records the
// dedup registry entry (spec §4.E.3).
func Verify(ctx context.Context, store metadata.Store, rawStore ros.Store, oid string, expectSize int64) error {
	if !ValidOID(oid) {
		return apperr.NewValidation("BadRequest", "oid is not a well-formed sha256")
	}

	size, found, err := rawStore.Head(ctx, ros.LFSKey(oid))
	if err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to verify upload")
	}

	if !found {
		return apperr.NewNotFound(apperr.EntityLFSObject, "EntryNotFound", "uploaded object not found")
	}

	if size != expectSize {
		return apperr.NewUnprocessable("BadRequest", "uploaded object size does not match declared size")
	}

	return store.LFS().Touch(ctx, oid, size)
}

// CompleteMultipart finalizes a multipart LFS upload then verifies it,
// matching the spec's "after the client finishes, the verify endpoint
// HEADs the object" step even for the multipart path.
func CompleteMultipart(ctx context.Context, store metadata.Store, rawStore ros.Store, oid string, expectSize int64, uploadID string, parts []ros.PartETag) error {
	if err := rawStore.MultipartComplete(ctx, ros.LFSKey(oid), uploadID, parts); err != nil {
		return err
	}

	return Verify(ctx, store, rawStore, oid, expectSize)
}
