package commit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/lfs"
	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/quota"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

// Engine runs the commit pipeline of spec §4.F against one metadata
// store, one VOS client, and one ROS client.
type Engine struct {
	Store            metadata.Store
	VOS              vos.Store
	ROS              ros.Store
	Locker           Locker
	Logger           logging.Logger
	DefaultThreshold int64
	BaseURL          string
}

// Request names everything the engine needs beyond the parsed operations.
type Request struct {
	Repo       *metadata.Repository
	Branch     string
	Operations []Operation
	AuthorID   *int64
	Username   string
}

// Result is what a successful commit returns to the HTTP layer.
type Result struct {
	CommitID  string `json:"commit_id"`
	CommitURL string `json:"commit_url"`
	CommitOID string `json:"commit_oid"`
}

// plannedChange is the resolved effect of one operation against the
// base revision, computed in step 3 before any side effect happens.
type plannedChange struct {
	path        string
	deleted     bool
	size        int64
	sha256      string
	isLFS       bool
	stagePhysAddr string // non-empty: stage by reference (lfsFile/copyFile)
	stageContent  []byte // non-empty: stage by uploading these bytes (file)
	delta       int64
}

// Run executes the full pipeline, retrying once on a VOS non-fast-
// forward conflict per spec §5.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	header, err := validateHeader(req.Operations)
	if err != nil {
		return nil, err
	}

	unlock, err := e.Locker.Lock(ctx, req.Repo.ID, req.Branch)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to acquire commit lock")
	}
	defer unlock()

	result, err := e.attempt(ctx, req, header)
	if err == nil {
		return result, nil
	}

	if !isVOSConflict(err) {
		return nil, err
	}

	result, err = e.attempt(ctx, req, header)
	if err != nil {
		if isVOSConflict(err) {
			return nil, apperr.NewConflict(apperr.EntityCommit, "EntityConflict", "branch advanced twice during commit, please retry")
		}

		return nil, err
	}

	return result, nil
}

func isVOSConflict(err error) bool {
	var conflict apperr.ConflictError

	return errors.As(err, &conflict)
}

func validateHeader(ops []Operation) (*HeaderOp, error) {
	if len(ops) == 0 || ops[0].Kind != OpHeader {
		return nil, apperr.NewValidation("BadRequest", "commit must start with a header operation")
	}

	return ops[0].Header, nil
}

func (e *Engine) attempt(ctx context.Context, req Request, header *HeaderOp) (*Result, error) {
	baseRef := req.Branch
	if header.ParentCommit != nil && *header.ParentCommit != "" {
		baseRef = *header.ParentCommit
	}

	changes, totalDelta, err := e.plan(ctx, req, baseRef)
	if err != nil {
		return nil, err
	}

	bucket := quota.BucketFor(req.Repo.Private)
	if err := quota.CheckCommit(ctx, e.Store, req.Repo.OwnerID, req.Repo.ID, bucket, req.Repo, quota.Delta(totalDelta)); err != nil {
		return nil, err
	}

	stagedKeys, err := e.stage(ctx, req, changes)
	if err != nil {
		e.cleanupStaged(ctx, stagedKeys)
		return nil, err
	}

	commitRes, err := e.VOS.Commit(ctx, req.Repo.VOSRepoName, req.Branch, header.Summary, map[string]string{
		"author":      req.Username,
		"description": header.Description,
	})
	if err != nil {
		e.cleanupStaged(ctx, stagedKeys)
		return nil, err
	}

	if err := e.persist(ctx, req, changes, totalDelta, bucket, commitRes); err != nil {
		return nil, err
	}

	return &Result{
		CommitID:  commitRes.ID,
		CommitURL: fmt.Sprintf("%s/%s/%s/commit/%s", e.BaseURL, req.Repo.FullID, req.Repo.RepoType, commitRes.ID),
		CommitOID: commitRes.ID,
	}, nil
}

// plan computes step 3: the file-index effect and quota delta for
// every operation, without any observable side effect yet.
func (e *Engine) plan(ctx context.Context, req Request, baseRef string) ([]plannedChange, int64, error) {
	var (
		changes []plannedChange
		total   int64
	)

	for _, op := range req.Operations {
		switch op.Kind {
		case OpHeader:
			continue

		case OpDeletedFile:
			change, err := e.planDeletedFile(ctx, req, op.DeletedFile.Path)
			if err != nil {
				return nil, 0, err
			}

			if change != nil {
				changes = append(changes, *change)
				total += change.delta
			}

		case OpDeletedFolder:
			deletions, err := e.planDeletedFolder(ctx, req, op.DeletedFolder.PathPrefix)
			if err != nil {
				return nil, 0, err
			}

			for _, d := range deletions {
				changes = append(changes, d)
				total += d.delta
			}

		case OpFile:
			change, err := e.planFile(ctx, req, op.File)
			if err != nil {
				return nil, 0, err
			}

			changes = append(changes, *change)
			total += change.delta

		case OpLFSFile:
			change, err := e.planLFSFile(ctx, req, op.LFSFile)
			if err != nil {
				return nil, 0, err
			}

			changes = append(changes, *change)
			total += change.delta

		case OpCopyFile:
			change, err := e.planCopyFile(ctx, req, op.CopyFile, baseRef)
			if err != nil {
				return nil, 0, err
			}

			changes = append(changes, *change)
			total += change.delta

		default:
			return nil, 0, apperr.NewValidation("BadRequest", "unknown operation kind")
		}
	}

	return changes, total, nil
}

func (e *Engine) planDeletedFile(ctx context.Context, req Request, path string) (*plannedChange, error) {
	existing, err := e.Store.Files().Find(ctx, req.Repo.ID, req.Branch, path)
	if err != nil {
		if apperr.StatusCode(err) == 404 {
			return nil, nil
		}

		return nil, err
	}

	return &plannedChange{path: path, deleted: true, delta: -existing.Size}, nil
}

func (e *Engine) planDeletedFolder(ctx context.Context, req Request, prefix string) ([]plannedChange, error) {
	var out []plannedChange

	after := ""

	for {
		files, err := e.Store.Files().ListByPrefix(ctx, req.Repo.ID, req.Branch, prefix, after, 500)
		if err != nil {
			return nil, err
		}

		if len(files) == 0 {
			break
		}

		for _, f := range files {
			if f.IsDeleted {
				continue
			}

			out = append(out, plannedChange{path: f.PathInRepo, deleted: true, delta: -f.Size})
		}

		after = files[len(files)-1].PathInRepo

		if len(files) < 500 {
			break
		}
	}

	return out, nil
}

func (e *Engine) planFile(ctx context.Context, req Request, op *FileOp) (*plannedChange, error) {
	if lfs.Eligible(req.Repo, e.DefaultThreshold, op.Path, op.Size) {
		return nil, apperr.NewValidation("BadRequest", fmt.Sprintf("%s exceeds the inline size/suffix policy, use lfsFile", op.Path))
	}

	sum := sha256.Sum256(op.Content)
	if hex.EncodeToString(sum[:]) != op.SHA256 {
		return nil, apperr.NewValidation("BadRequest", fmt.Sprintf("sha256 mismatch for %s", op.Path))
	}

	delta := op.Size

	existing, err := e.Store.Files().Find(ctx, req.Repo.ID, req.Branch, op.Path)
	if err == nil {
		delta = op.Size - existing.Size
	} else if apperr.StatusCode(err) != 404 {
		return nil, err
	}

	return &plannedChange{
		path: op.Path, size: op.Size, sha256: op.SHA256,
		stageContent: op.Content, delta: delta,
	}, nil
}

func (e *Engine) planLFSFile(ctx context.Context, req Request, op *LFSFileOp) (*plannedChange, error) {
	if !lfs.ValidOID(op.OID) {
		return nil, apperr.NewValidation("BadRequest", "lfsFile oid is not a well-formed sha256")
	}

	_, found, err := e.ROS.Head(ctx, ros.LFSKey(op.OID))
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to check LFS object existence")
	}

	if !found {
		return nil, apperr.NewUnprocessable("BadRequest", fmt.Sprintf("lfsFile %s has not been uploaded", op.OID))
	}

	delta := int64(0)

	existing, err := e.Store.Files().Find(ctx, req.Repo.ID, req.Branch, op.Path)
	if err != nil && apperr.StatusCode(err) != 404 {
		return nil, err
	}

	alreadyCounted := err == nil && existing.LFS && existing.SHA256 == op.OID
	if !alreadyCounted {
		delta = op.Size
	}

	return &plannedChange{
		path: op.Path, size: op.Size, sha256: op.OID, isLFS: true,
		stagePhysAddr: ros.LFSKey(op.OID), delta: delta,
	}, nil
}

func (e *Engine) planCopyFile(ctx context.Context, req Request, op *CopyFileOp, baseRef string) (*plannedChange, error) {
	srcRef := op.SrcRevision
	if srcRef == "" {
		srcRef = baseRef
	}

	srcObj, err := e.VOS.GetObject(ctx, req.Repo.VOSRepoName, srcRef, op.SrcPath)
	if err != nil {
		return nil, err
	}

	delta := int64(0)

	existing, err := e.Store.Files().Find(ctx, req.Repo.ID, req.Branch, op.DstPath)
	if err != nil && apperr.StatusCode(err) != 404 {
		return nil, err
	}

	alreadyReferenced := err == nil && existing.SHA256 == srcObj.Checksum
	if err != nil || !alreadyReferenced {
		delta = srcObj.SizeBytes
	}

	return &plannedChange{
		path: op.DstPath, size: srcObj.SizeBytes, sha256: srcObj.Checksum,
		stagePhysAddr: srcObj.PhysicalAddress, delta: delta,
	}, nil
}

// stage uploads/stages every planned change (step 5) and returns the
// raw-store keys it newly wrote, for best-effort cleanup on failure.
func (e *Engine) stage(ctx context.Context, req Request, changes []plannedChange) ([]string, error) {
	var newKeys []string

	for _, ch := range changes {
		if ch.deleted {
			if err := e.VOS.DeleteObject(ctx, req.Repo.VOSRepoName, req.Branch, ch.path); err != nil {
				return newKeys, err
			}

			continue
		}

		physAddr := ch.stagePhysAddr

		if ch.stageContent != nil {
			key := ros.StagingKey(req.Repo.VOSRepoName, req.Branch, uuid.NewString())
			if err := e.ROS.Put(ctx, key, bytes.NewReader(ch.stageContent), ch.size); err != nil {
				return newKeys, err
			}

			newKeys = append(newKeys, key)
			physAddr = key
		}

		if err := e.VOS.StageObject(ctx, req.Repo.VOSRepoName, req.Branch, ch.path, physAddr, ch.size, ch.sha256); err != nil {
			return newKeys, err
		}
	}

	return newKeys, nil
}

func (e *Engine) cleanupStaged(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := e.ROS.Delete(ctx, k); err != nil && e.Logger != nil {
			e.Logger.Warnf("commit: failed to clean up staging blob %s: %v", k, err)
		}
	}
}

// persist is step 7: one DB transaction that upserts File rows, writes
// the Commit row, applies the quota delta, and touches LFS history.
func (e *Engine) persist(ctx context.Context, req Request, changes []plannedChange, totalDelta int64, bucket quota.Bucket, commitRes *vos.CommitResult) error {
	return e.Store.WithTx(ctx, func(ctx context.Context, tx metadata.Store) error {
		for _, ch := range changes {
			if ch.deleted {
				if err := tx.Files().MarkDeleted(ctx, req.Repo.ID, req.Branch, ch.path); err != nil {
					return err
				}

				continue
			}

			if err := tx.Files().Upsert(ctx, &metadata.File{
				RepositoryID: req.Repo.ID, Branch: req.Branch, PathInRepo: ch.path,
				SHA256: ch.sha256, Size: ch.size, LFS: ch.isLFS,
			}); err != nil {
				return err
			}

			if ch.isLFS {
				if err := tx.LFS().Touch(ctx, ch.sha256, ch.size); err != nil {
					return err
				}
			}
		}

		if _, err := tx.Commits().Create(ctx, &metadata.Commit{
			CommitID: commitRes.ID, RepositoryID: req.Repo.ID, RepoType: req.Repo.RepoType,
			Branch: req.Branch, AuthorID: req.AuthorID, Username: req.Username,
			Message: commitRes.Message,
		}); err != nil {
			return err
		}

		return quota.ApplyCommit(ctx, tx, req.Repo.OwnerID, req.Repo.ID, bucket, quota.Delta(totalDelta))
	})
}
