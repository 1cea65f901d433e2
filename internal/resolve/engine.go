package resolve

import (
	"context"
	"time"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

// presignTTLSeconds bounds how long a resolve redirect stays valid.
const presignTTLSeconds = 3600

// Engine serves spec §4.G: presigned redirects and CAS reconstruction
// manifests, with a fallback hook for repos/files the hub does not
// have locally.
type Engine struct {
	Store    metadata.Store
	VOS      vos.Store
	ROS      ros.Store
	Fallback FallbackResolver
}

// FallbackResolver is consulted whenever a local stat misses; nil
// disables the fallback layer entirely (spec §4.H is a separate,
// optional component).
type FallbackResolver interface {
	Resolve(ctx context.Context, repo *metadata.Repository, revision, path string) (redirectURL string, sourceName string, err error)
}

// Redirect is what a resolve/download request returns: a 302 target
// plus the headers spec §6 requires on the response.
type Redirect struct {
	URL          string
	CommitOID    string
	ETag         string
	ContentLength int64
	LinkedSize   int64
	LinkedETag   string
	IsLFS        bool
	Source       string // non-empty when served via the fallback proxy
}

// Resolve performs spec §4.G steps 1-4 for one file at one revision.
// Step 1 (permission check) is the caller's responsibility — the HTTP
// layer already resolves an auth.Identity before reaching this engine.
func (e *Engine) Resolve(ctx context.Context, repo *metadata.Repository, revision, path string) (*Redirect, error) {
	obj, err := e.VOS.GetObject(ctx, repo.VOSRepoName, revision, path)
	if err != nil {
		if apperr.StatusCode(err) == 404 && e.Fallback != nil {
			url, source, fbErr := e.Fallback.Resolve(ctx, repo, revision, path)
			if fbErr != nil {
				return nil, fbErr
			}

			return &Redirect{URL: url, Source: source}, nil
		}

		return nil, err
	}

	file, err := e.Store.Files().Find(ctx, repo.ID, revision, path)
	if err != nil && apperr.StatusCode(err) != 404 {
		return nil, err
	}

	url, err := e.ROS.PresignGet(ctx, obj.PhysicalAddress, presignTTLSeconds, basename(path))
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to presign download URL")
	}

	redirect := &Redirect{
		URL: url, CommitOID: revision, ETag: obj.Checksum, ContentLength: obj.SizeBytes,
	}

	if file != nil && file.LFS {
		redirect.IsLFS = true
		redirect.LinkedSize = obj.SizeBytes
		redirect.LinkedETag = obj.Checksum
	}

	return redirect, nil
}

// RecordDownload applies spec §4.G step 4's side effect: a per-day,
// per-session-deduplicated stats increment plus the repo's lifetime
// counter. sessionSeen is provided by the HTTP layer's dedup cache
// (spec §4.H's TTL cache serves double duty here); when sessionSeen is
// false this is the first hit this session has made today.
func (e *Engine) RecordDownload(ctx context.Context, repo *metadata.Repository, authenticated, sessionSeen bool) error {
	if err := e.Store.Repositories().IncrementDownloads(ctx, repo.ID, 1); err != nil {
		return err
	}

	if sessionSeen {
		return nil
	}

	today := time.Now().UTC().Format("2006-01-02")

	return e.Store.Stats().IncrementDownload(ctx, repo.ID, today, authenticated)
}

// LookupBySHA256 locates any live File row with the given content
// hash, globally across every repository, and loads its owning
// repository — the top-level `GET /cas/reconstructions/{sha256}` API
// of spec §4.G/§6 is not scoped to a repo path, so the caller must
// resolve which repo to permission-check before calling Reconstruct.
func (e *Engine) LookupBySHA256(ctx context.Context, sha256 string) (*metadata.Repository, *metadata.File, error) {
	file, err := e.Store.Files().FindAnyBySHA256(ctx, sha256)
	if err != nil {
		return nil, nil, err
	}

	repo, err := e.Store.Repositories().FindByID(ctx, file.RepositoryID)
	if err != nil {
		return nil, nil, err
	}

	return repo, file, nil
}

// Reconstruct serves the CAS reconstruction API: given the file and
// its owning repository already resolved and permission-checked by the
// caller (via LookupBySHA256), stat the physical address and build the
// chunked manifest.
func (e *Engine) Reconstruct(ctx context.Context, repo *metadata.Repository, file *metadata.File) (*Manifest, error) {
	obj, err := e.VOS.GetObject(ctx, repo.VOSRepoName, file.Branch, file.PathInRepo)
	if err != nil {
		return nil, err
	}

	url, err := e.ROS.PresignGet(ctx, obj.PhysicalAddress, presignTTLSeconds, file.SHA256)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to presign reconstruction URL")
	}

	manifest := BuildManifest(file.SHA256, obj.SizeBytes, url)

	return &manifest, nil
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}

	return path
}
